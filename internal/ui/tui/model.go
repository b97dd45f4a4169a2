package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/imamik/stackzner/internal/deploy"
)

// Resource status values as shown in the dashboard.
const (
	statusPending  = "pending"
	statusCreating = "creating"
	statusCreated  = "created"
	statusExists   = "exists"
	statusFailed   = "failed"
	statusDeleting = "deleting"
	statusDeleted  = "deleted"
)

// PhaseState represents one sequential run phase for display.
type PhaseState struct {
	Name   string
	Key    string
	Done   bool
	Active bool
	Err    error
}

// ResourceRow is one resource line in the dashboard.
type ResourceRow struct {
	ID     string
	Kind   string
	Status string
	Detail string
}

// ProbeRow tracks the health gate state of one endpoint.
type ProbeRow struct {
	InstanceID string
	Message    string
	Registered bool
	Failing    bool
}

type progressState struct {
	Current int
	Total   int
}

// Model is the Bubble Tea model for the deployment dashboard.
type Model struct {
	// Run info
	Deployment string
	Region     string

	// Sequential phases (artifacts, provision, health)
	Phases []PhaseState

	// Resource rows in plan order
	Resources []ResourceRow

	// Health gate rows, one per probed endpoint
	Probes []ProbeRow

	// Artifact counters
	ArtifactTotal int
	Published     int
	Granted       int

	// True once a teardown event arrives during a deploy run
	RollingBack bool

	// Recent unstructured progress lines
	LogLines []string

	// Animation
	SpinnerFrame int

	// UI state
	Width  int
	Height int
	Err    error
	Done   bool

	// Mode
	Mode string // "deploy", "destroy"

	resourceIndex map[string]int
	probeIndex    map[string]int
	phaseProgress map[string]progressState

	StartTime time.Time
}

// NewDeployModel creates the dashboard model for the deploy command. The
// resource rows come from the manifest so every resource is visible before
// the first event arrives.
func NewDeployModel(deployment, region string, descriptors []deploy.Descriptor, artifactCount int) Model {
	m := newModel(deployment, region, "deploy", descriptors)
	m.ArtifactTotal = artifactCount
	m.Phases = []PhaseState{
		{Name: "Artifacts", Key: "artifacts"},
		{Name: "Provision", Key: "provision"},
		{Name: "Health", Key: "health"},
	}
	return m
}

// NewDestroyModel creates the dashboard model for the destroy command.
func NewDestroyModel(deployment, region string, descriptors []deploy.Descriptor) Model {
	m := newModel(deployment, region, "destroy", descriptors)
	m.Phases = []PhaseState{
		{Name: "Teardown", Key: "teardown"},
	}
	return m
}

func newModel(deployment, region, mode string, descriptors []deploy.Descriptor) Model {
	m := Model{
		Deployment:    deployment,
		Region:        region,
		StartTime:     time.Now(),
		Mode:          mode,
		resourceIndex: make(map[string]int),
		probeIndex:    make(map[string]int),
		phaseProgress: make(map[string]progressState),
	}
	for _, d := range descriptors {
		m.addResource(d.ID, string(d.Kind))
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case EventMsg:
		m.applyEvent(msg.Event)

	case ProgressMsg:
		m.phaseProgress[msg.Phase] = progressState{Current: msg.Current, Total: msg.Total}

	case LogMsg:
		m.appendLog(msg.Line)

	case TickMsg:
		m.SpinnerFrame++
		return m, tickCmd()

	case ErrMsg:
		m.Err = msg.Err
		return m, tea.Quit

	case DoneMsg:
		m.Done = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) applyEvent(e deploy.Event) {
	switch e.Type {
	case deploy.EventPhaseStarted:
		m.startPhase(e.Phase)
	case deploy.EventPhaseCompleted:
		m.finishPhase(e.Phase, nil)
	case deploy.EventPhaseFailed:
		m.finishPhase(e.Phase, fmt.Errorf("%s", e.Message))

	case deploy.EventTierStarted, deploy.EventTierCompleted:
		m.appendLog(e.Message)

	case deploy.EventResourceCreating:
		m.setResource(e.Resource, statusCreating, "")
	case deploy.EventResourceCreated:
		m.setResource(e.Resource, statusCreated, "")
	case deploy.EventResourceExists:
		m.setResource(e.Resource, statusExists, "")
	case deploy.EventResourceFailed:
		m.setResource(e.Resource, statusFailed, e.Message)
	case deploy.EventResourceDeleting:
		if m.Mode == "deploy" {
			m.RollingBack = true
		}
		m.setResource(e.Resource, statusDeleting, "")
	case deploy.EventResourceDeleted:
		m.setResource(e.Resource, statusDeleted, "")

	case deploy.EventArtifactPublished:
		m.Published++
	case deploy.EventArtifactGranted:
		m.Granted++

	case deploy.EventProbeSuccess:
		m.setProbe(e.Resource, e.Message, false, false)
	case deploy.EventProbeFailure:
		m.setProbe(e.Resource, e.Message, false, true)
	case deploy.EventMemberRegistered:
		m.setProbe(e.Resource, e.Message, true, false)
	}
}

// startPhase marks the named phase active and every phase before it done.
func (m *Model) startPhase(key string) {
	for i := range m.Phases {
		if m.Phases[i].Key == key {
			m.Phases[i].Active = true
			return
		}
		m.Phases[i].Done = true
		m.Phases[i].Active = false
	}
}

func (m *Model) finishPhase(key string, err error) {
	for i := range m.Phases {
		if m.Phases[i].Key != key {
			continue
		}
		m.Phases[i].Active = false
		if err != nil {
			m.Phases[i].Err = err
			return
		}
		m.Phases[i].Done = true
		return
	}
}

func (m *Model) addResource(id, kind string) {
	if _, ok := m.resourceIndex[id]; ok {
		return
	}
	m.resourceIndex[id] = len(m.Resources)
	m.Resources = append(m.Resources, ResourceRow{ID: id, Kind: kind, Status: statusPending})
}

func (m *Model) setResource(id, status, detail string) {
	idx, ok := m.resourceIndex[id]
	if !ok {
		m.addResource(id, "")
		idx = m.resourceIndex[id]
	}
	m.Resources[idx].Status = status
	if detail != "" {
		m.Resources[idx].Detail = detail
	}
}

func (m *Model) setProbe(instanceID, message string, registered, failing bool) {
	idx, ok := m.probeIndex[instanceID]
	if !ok {
		m.probeIndex[instanceID] = len(m.Probes)
		m.Probes = append(m.Probes, ProbeRow{InstanceID: instanceID})
		idx = m.probeIndex[instanceID]
	}
	m.Probes[idx].Message = message
	m.Probes[idx].Failing = failing
	if registered {
		m.Probes[idx].Registered = true
	}
}

func (m *Model) appendLog(line string) {
	m.LogLines = append(m.LogLines, line)
	if len(m.LogLines) > 4 {
		m.LogLines = m.LogLines[len(m.LogLines)-4:]
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View implements tea.Model.
func (m Model) View() string {
	return renderView(m)
}
