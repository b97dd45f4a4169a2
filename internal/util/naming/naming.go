package naming

import "fmt"

// Naming functions for deployment resources.
// All Hetzner Cloud resources follow consistent naming patterns to enable
// easy identification and cleanup.

func Resource(deployment, id string) string {
	return fmt.Sprintf("%s-%s", deployment, id)
}

func Member(deployment, setID string, index int) string {
	return fmt.Sprintf("%s-%s-%d", deployment, setID, index)
}

func Bucket(deployment, accountID string) string {
	return fmt.Sprintf("%s-%s", deployment, accountID)
}

func ArtifactBucket(deployment string) string {
	return fmt.Sprintf("%s-artifacts", deployment)
}

func AdminKey(deployment string) string {
	return fmt.Sprintf("%s-admin", deployment)
}
