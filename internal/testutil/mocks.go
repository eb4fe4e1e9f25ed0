package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/fleetgate/fleetgate/internal/domain/resource"
)

// ProvisionerCall records one call to the mock provisioner
type ProvisionerCall struct {
	Op   string // "exists", "create", "delete"
	Kind resource.Kind
	Name string
}

// MockProvisioner is a scripted implementation of resource.Provisioner
type MockProvisioner struct {
	mu sync.Mutex

	// Existing maps kind/name to a descriptor returned by Exists
	Existing map[string]*resource.Descriptor

	ExistsErr error
	CreateErr error
	// CreateErrs maps a resource name to a creation error
	CreateErrs map[string]error
	// DeleteErrs maps a resource name to a deletion error
	DeleteErrs map[string]error

	Calls []ProvisionerCall
}

// NewMockProvisioner creates an empty mock provisioner
func NewMockProvisioner() *MockProvisioner {
	return &MockProvisioner{
		Existing:   make(map[string]*resource.Descriptor),
		CreateErrs: make(map[string]error),
		DeleteErrs: make(map[string]error),
	}
}

// AddExisting registers a descriptor returned by Exists
func (m *MockProvisioner) AddExisting(desc *resource.Descriptor) {
	m.Existing[key(desc.Kind, desc.Name)] = desc
}

func (m *MockProvisioner) Exists(_ context.Context, kind resource.Kind, selector resource.Selector) (*resource.Descriptor, error) {
	m.record("exists", kind, selector.Name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ExistsErr != nil {
		return nil, m.ExistsErr
	}
	return m.Existing[key(kind, selector.Name)], nil
}

func (m *MockProvisioner) Create(_ context.Context, kind resource.Kind, params resource.CreateParams) (*resource.Descriptor, error) {
	m.record("create", kind, params.Name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if err := m.CreateErrs[params.Name]; err != nil {
		return nil, err
	}
	desc := &resource.Descriptor{
		ID:                fmt.Sprintf("/mock/%s/%s", kind, params.Name),
		Name:              params.Name,
		Kind:              kind,
		Region:            params.Region,
		ResourceGroup:     params.ResourceGroup,
		ProvisioningState: resource.StateSucceeded,
	}
	m.Existing[key(kind, params.Name)] = desc
	return desc, nil
}

func (m *MockProvisioner) Delete(_ context.Context, kind resource.Kind, selector resource.Selector) error {
	m.record("delete", kind, selector.Name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.DeleteErrs[selector.Name]; err != nil {
		return err
	}
	delete(m.Existing, key(kind, selector.Name))
	return nil
}

// DeleteCalls returns the recorded delete calls
func (m *MockProvisioner) DeleteCalls() []ProvisionerCall {
	return m.callsByOp("delete")
}

// CreateCalls returns the recorded create calls
func (m *MockProvisioner) CreateCalls() []ProvisionerCall {
	return m.callsByOp("create")
}

func (m *MockProvisioner) callsByOp(op string) []ProvisionerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ProvisionerCall
	for _, c := range m.Calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockProvisioner) record(op string, kind resource.Kind, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, ProvisionerCall{Op: op, Kind: kind, Name: name})
}

func key(kind resource.Kind, name string) string {
	return string(kind) + "/" + name
}

// RecordedChoice is one choice prompt shown to the recording double
type RecordedChoice struct {
	Prompt  string
	Options []resource.ChoiceOption
}

// RecordingInteraction is a scripted implementation of
// resource.Interaction that records every prompt it was shown.
type RecordingInteraction struct {
	// ChoiceAnswers are consumed in order; when exhausted the choice
	// falls back to "cancel".
	ChoiceAnswers []string
	// ConfirmAnswers are consumed in order; when exhausted Confirm
	// returns false.
	ConfirmAnswers []bool

	Choices        []RecordedChoice
	ConfirmPrompts []string
	Infos          []string
	Warns          []string
}

// NewRecordingInteraction creates an empty recording double
func NewRecordingInteraction(choiceAnswers ...string) *RecordingInteraction {
	return &RecordingInteraction{ChoiceAnswers: choiceAnswers}
}

func (r *RecordingInteraction) Choice(prompt string, options []resource.ChoiceOption) (string, error) {
	r.Choices = append(r.Choices, RecordedChoice{Prompt: prompt, Options: options})
	if len(r.ChoiceAnswers) == 0 {
		return "cancel", nil
	}
	answer := r.ChoiceAnswers[0]
	r.ChoiceAnswers = r.ChoiceAnswers[1:]
	return answer, nil
}

func (r *RecordingInteraction) Confirm(prompt, expectedToken string) bool {
	r.ConfirmPrompts = append(r.ConfirmPrompts, prompt)
	if len(r.ConfirmAnswers) == 0 {
		return false
	}
	answer := r.ConfirmAnswers[0]
	r.ConfirmAnswers = r.ConfirmAnswers[1:]
	return answer
}

func (r *RecordingInteraction) Info(msg string) {
	r.Infos = append(r.Infos, msg)
}

func (r *RecordingInteraction) Warn(msg string) {
	r.Warns = append(r.Warns, msg)
}

// StaticInventory is a fixed-content implementation of
// resource.Inventory.
type StaticInventory struct {
	VMs       []resource.VM
	Resources map[resource.Kind][]resource.Descriptor

	VMsErr       error
	ResourcesErr error
}

// NewStaticInventory creates an empty static inventory
func NewStaticInventory() *StaticInventory {
	return &StaticInventory{
		Resources: make(map[resource.Kind][]resource.Descriptor),
	}
}

func (s *StaticInventory) ListVMs(_ context.Context, region string) ([]resource.VM, error) {
	if s.VMsErr != nil {
		return nil, s.VMsErr
	}
	if region == resource.AllRegions {
		return s.VMs, nil
	}
	var out []resource.VM
	for _, vm := range s.VMs {
		if vm.Region == region {
			out = append(out, vm)
		}
	}
	return out, nil
}

func (s *StaticInventory) ListResources(_ context.Context, kind resource.Kind, region string) ([]resource.Descriptor, error) {
	if s.ResourcesErr != nil {
		return nil, s.ResourcesErr
	}
	if region == resource.AllRegions {
		return s.Resources[kind], nil
	}
	var out []resource.Descriptor
	for _, desc := range s.Resources[kind] {
		if desc.Region == region {
			out = append(out, desc)
		}
	}
	return out, nil
}

// StaticEstimator is a fixed-value implementation of
// resource.CostEstimator.
type StaticEstimator struct {
	Monthly float64
	Err     error
}

func (s StaticEstimator) Estimate(_ context.Context, _ resource.Descriptor) (resource.Estimate, error) {
	if s.Err != nil {
		return resource.Estimate{}, s.Err
	}
	return resource.Estimate{Monthly: s.Monthly, Confidence: "static"}, nil
}
