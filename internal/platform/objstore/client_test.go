package objstore

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// testClient creates a Client backed by a test HTTP server.
// The handler receives real S3 XML-protocol requests.
func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)

	raw := s3.New(s3.Options{
		Region:       "fsn1",
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
		HTTPClient: &http.Client{
			Transport: &http.Transport{},
		},
	})

	return &Client{s3: raw, presign: s3.NewPresignClient(raw), region: "fsn1"}, server
}

// xmlResponse is a helper to write S3-style XML responses.
func xmlResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

func TestEndpointForRegion(t *testing.T) {
	t.Parallel()
	got := EndpointForRegion("fsn1")
	want := "https://fsn1.your-objectstorage.com"
	if got != want {
		t.Errorf("EndpointForRegion(fsn1) = %q, want %q", got, want)
	}
}

func TestNewClient(t *testing.T) {
	t.Parallel()
	client, err := NewClient("https://fsn1.your-objectstorage.com", "fsn1", "key", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client == nil {
		t.Fatal("expected non-nil client")
	}
	if client.region != "fsn1" {
		t.Errorf("expected region fsn1, got %s", client.region)
	}
	if client.presign == nil {
		t.Error("expected presign client to be initialized")
	}
}

func TestCreateBucket_Success(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "PUT" {
			xmlResponse(w, 200, `<?xml version="1.0" encoding="UTF-8"?><CreateBucketResult/>`)
			return
		}
		xmlResponse(w, 404, "")
	})

	client, server := testClient(t, handler)
	defer server.Close()

	if err := client.CreateBucket(context.Background(), "test-bucket"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateBucket_AlreadyOwnedByYou(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		xmlResponse(w, 409, `<?xml version="1.0" encoding="UTF-8"?>
<Error>
  <Code>BucketAlreadyOwnedByYou</Code>
  <Message>Your previous request to create the named bucket succeeded and you already own it.</Message>
  <BucketName>test-bucket</BucketName>
</Error>`)
	})

	client, server := testClient(t, handler)
	defer server.Close()

	if err := client.CreateBucket(context.Background(), "test-bucket"); err != nil {
		t.Fatalf("expected nil error for already owned bucket, got: %v", err)
	}
}

func TestCreateBucket_Error(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		xmlResponse(w, 403, `<?xml version="1.0" encoding="UTF-8"?>
<Error>
  <Code>AccessDenied</Code>
  <Message>Access Denied</Message>
</Error>`)
	})

	client, server := testClient(t, handler)
	defer server.Close()

	err := client.CreateBucket(context.Background(), "test-bucket")
	if err == nil {
		t.Fatal("expected error but got nil")
	}
	if !strings.Contains(err.Error(), "failed to create bucket test-bucket") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestObjectExists(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "HEAD" {
			w.WriteHeader(500)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/present") {
			w.WriteHeader(200)
			return
		}
		w.WriteHeader(404)
	})

	client, server := testClient(t, handler)
	defer server.Close()

	exists, err := client.ObjectExists(context.Background(), "test-bucket", "present")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Error("expected object to exist")
	}

	exists, err = client.ObjectExists(context.Background(), "test-bucket", "absent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Error("expected object to be absent")
	}
}

func TestPutObject_SendsBody(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var capturedBody []byte

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "PUT" {
			var buf bytes.Buffer
			_, _ = buf.ReadFrom(r.Body)
			mu.Lock()
			capturedBody = buf.Bytes()
			mu.Unlock()
			w.WriteHeader(200)
			return
		}
		w.WriteHeader(404)
	})

	client, server := testClient(t, handler)
	defer server.Close()

	data := []byte("#!/bin/sh\necho bootstrap\n")
	if err := client.PutObject(context.Background(), "test-bucket", "boot.sh", data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !bytes.Equal(capturedBody, data) {
		t.Errorf("expected body %q, got %q", data, capturedBody)
	}
}

func TestGetObject_Success(t *testing.T) {
	t.Parallel()

	expectedData := []byte("object content here")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "GET" {
			w.WriteHeader(200)
			_, _ = w.Write(expectedData)
			return
		}
		w.WriteHeader(404)
	})

	client, server := testClient(t, handler)
	defer server.Close()

	data, err := client.GetObject(context.Background(), "test-bucket", "test-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(data, expectedData) {
		t.Errorf("expected %q, got %q", expectedData, data)
	}
}

func TestListObjects_WithPrefix(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var capturedPrefix string

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		capturedPrefix = r.URL.Query().Get("prefix")
		mu.Unlock()
		xmlResponse(w, 200, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult>
  <Name>test-bucket</Name>
  <Contents><Key>assets/boot.sh</Key></Contents>
  <Contents><Key>assets/ca.pem</Key></Contents>
</ListBucketResult>`)
	})

	client, server := testClient(t, handler)
	defer server.Close()

	keys, err := client.ListObjects(context.Background(), "test-bucket", "assets/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}

	mu.Lock()
	defer mu.Unlock()
	if capturedPrefix != "assets/" {
		t.Errorf("expected prefix assets/, got %q", capturedPrefix)
	}
}

func TestDeleteAllObjects(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var deleted []string

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "GET":
			xmlResponse(w, 200, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult>
  <Name>test-bucket</Name>
  <Contents><Key>assets/boot.sh</Key></Contents>
  <Contents><Key>assets/.container</Key></Contents>
</ListBucketResult>`)
		case "DELETE":
			mu.Lock()
			deleted = append(deleted, r.URL.Path)
			mu.Unlock()
			w.WriteHeader(204)
		default:
			w.WriteHeader(500)
		}
	})

	client, server := testClient(t, handler)
	defer server.Close()

	if err := client.DeleteAllObjects(context.Background(), "test-bucket", "assets/"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(deleted) != 2 {
		t.Errorf("expected 2 deletes, got %d: %v", len(deleted), deleted)
	}
}

func TestSignedGetURL(t *testing.T) {
	t.Parallel()

	// Presigning never talks to the server; the handler must stay silent.
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("presigning must not issue requests")
	})

	client, server := testClient(t, handler)
	defer server.Close()

	url, err := client.SignedGetURL(context.Background(), "test-bucket", "assets/boot.sh", 15*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"/test-bucket/assets/boot.sh", "X-Amz-Expires=900", "X-Amz-Signature="} {
		if !strings.Contains(url, want) {
			t.Errorf("presigned URL missing %q: %s", want, url)
		}
	}
}

func TestIsBucketAlreadyOwnedByYou(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"owned code", &smithy.GenericAPIError{Code: "BucketAlreadyOwnedByYou"}, true},
		{"exists code", &smithy.GenericAPIError{Code: "BucketAlreadyExists"}, true},
		{"other code", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isBucketAlreadyOwnedByYou(tt.err); got != tt.want {
				t.Errorf("isBucketAlreadyOwnedByYou() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"not found code", &smithy.GenericAPIError{Code: "NotFound"}, true},
		{"no such bucket", &smithy.GenericAPIError{Code: "NoSuchBucket"}, true},
		{"plain 404", &smithy.GenericAPIError{Code: "404"}, true},
		{"other code", &smithy.GenericAPIError{Code: "InternalError"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNotFoundError(tt.err); got != tt.want {
				t.Errorf("isNotFoundError() = %v, want %v", got, tt.want)
			}
		})
	}
}
