package controlplane

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/virtualdesk/fleet-console/internal/domain"
)

//go:embed demo_fleet.yaml
var demoFleetYAML []byte

// itemsPerPoll is how many batch items the shim completes between
// consecutive status calls.
const itemsPerPoll = 3

// DemoShim serves a fixture dataset and simulates batch execution. It is
// used when no control-plane credentials are configured, so the dashboard
// stays usable offline.
type DemoShim struct {
	mu        sync.RWMutex
	resources []*domain.Resource
	findings  []*domain.Finding
	batches   map[string]*demoBatch
}

// Ensure DemoShim implements Client.
var _ Client = (*DemoShim)(nil)

type demoBatch struct {
	action    string
	targets   []string
	results   []domain.ItemOutcome
	next      int // index of first unprocessed target
	cancelled bool
}

// fixture is the on-disk shape of the demo dataset.
type fixture struct {
	Resources []*demoResource `yaml:"resources"`
	Findings  []*demoFinding  `yaml:"findings"`
}

type demoResource struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	State        string            `yaml:"state"`
	Pool         string            `yaml:"pool"`
	Region       string            `yaml:"region"`
	AssignedUser string            `yaml:"assigned_user"`
	Bundle       string            `yaml:"bundle"`
	RunningMode  string            `yaml:"running_mode"`
	MonthlyCost  float64           `yaml:"monthly_cost"`
	Tags         map[string]string `yaml:"tags"`
}

type demoFinding struct {
	ID          string `yaml:"id"`
	Severity    string `yaml:"severity"`
	Category    string `yaml:"category"`
	ResourceID  string `yaml:"resource_id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// NewDemoShim creates a shim backed by the fixture at path, or by the
// embedded dataset when path is empty.
func NewDemoShim(path string) (*DemoShim, error) {
	data := demoFleetYAML
	if path != "" {
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading demo fixture: %w", err)
		}
		data = fileData
	}

	var fx fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parsing demo fixture: %w", err)
	}

	shim := &DemoShim{batches: make(map[string]*demoBatch)}
	now := time.Now()
	for i, r := range fx.Resources {
		shim.resources = append(shim.resources, &domain.Resource{
			ID:           r.ID,
			Name:         r.Name,
			State:        domain.ResourceState(r.State),
			Pool:         r.Pool,
			Region:       r.Region,
			AssignedUser: r.AssignedUser,
			Bundle:       r.Bundle,
			RunningMode:  r.RunningMode,
			MonthlyCost:  r.MonthlyCost,
			Tags:         r.Tags,
			CreatedAt:    now.AddDate(0, 0, -(i + 1)),
		})
	}
	for i, f := range fx.Findings {
		shim.findings = append(shim.findings, &domain.Finding{
			ID:          f.ID,
			Severity:    domain.FindingSeverity(f.Severity),
			Category:    f.Category,
			ResourceID:  f.ResourceID,
			Title:       f.Title,
			Description: f.Description,
			DetectedAt:  now.AddDate(0, 0, -(i + 2)),
		})
	}

	return shim, nil
}

// ListResources filters the fixture fleet.
func (s *DemoShim) ListResources(ctx context.Context, filter domain.ResourceFilter) ([]*domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Resource
	for _, r := range s.resources {
		if filter.State != "" && r.State != filter.State {
			continue
		}
		if filter.Pool != "" && r.Pool != filter.Pool {
			continue
		}
		if filter.Region != "" && r.Region != filter.Region {
			continue
		}
		if filter.Query != "" && !matchesQuery(r, filter.Query) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func matchesQuery(r *domain.Resource, q string) bool {
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(r.ID), q) ||
		strings.Contains(strings.ToLower(r.Name), q) ||
		strings.Contains(strings.ToLower(r.AssignedUser), q)
}

// GetResource finds one fixture resource by ID.
func (s *DemoShim) GetResource(ctx context.Context, id string) (*domain.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.resources {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, domain.ErrNotFound
}

// CostSummary aggregates fixture costs by pool and region.
func (s *DemoShim) CostSummary(ctx context.Context) (*domain.CostSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byPool := make(map[string]*domain.CostBucket)
	byRegion := make(map[string]*domain.CostBucket)
	var total float64

	for _, r := range s.resources {
		if r.State == domain.StateTerminated {
			continue
		}
		total += r.MonthlyCost
		addBucket(byPool, r.Pool, r.MonthlyCost)
		addBucket(byRegion, r.Region, r.MonthlyCost)
	}

	return &domain.CostSummary{
		TotalMonthly: total,
		// Flat projection: the shim has no usage history to trend on.
		ProjectedMonthly: total,
		Currency:         "USD",
		ByPool:           sortBuckets(byPool),
		ByRegion:         sortBuckets(byRegion),
	}, nil
}

func addBucket(m map[string]*domain.CostBucket, key string, cost float64) {
	b, ok := m[key]
	if !ok {
		b = &domain.CostBucket{Key: key}
		m[key] = b
	}
	b.MonthlyCost += cost
	b.Resources++
}

func sortBuckets(m map[string]*domain.CostBucket) []domain.CostBucket {
	out := make([]domain.CostBucket, 0, len(m))
	for _, b := range m {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonthlyCost > out[j].MonthlyCost })
	return out
}

// ListFindings filters the fixture findings by severity.
func (s *DemoShim) ListFindings(ctx context.Context, severity domain.FindingSeverity) ([]*domain.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Finding
	for _, f := range s.findings {
		if severity != "" && f.Severity != severity {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// SubmitBatch registers a simulated batch and returns its ID.
func (s *DemoShim) SubmitBatch(ctx context.Context, endpoint string, req *SubmitRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batchID := uuid.New().String()
	s.batches[batchID] = &demoBatch{
		action:  req.Action,
		targets: append([]string(nil), req.ResourceIDs...),
	}

	log.Printf("[DemoShim] Accepted %q batch %s (%d resources)", req.Action, batchID, len(req.ResourceIDs))
	return batchID, nil
}

// BatchStatus advances the simulated batch a few items and reports it.
// Targets that exist in the fixture succeed; unknown IDs fail.
func (s *DemoShim) BatchStatus(ctx context.Context, batchID string) (*BatchStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	if !b.cancelled {
		for n := 0; n < itemsPerPoll && b.next < len(b.targets); n++ {
			id := b.targets[b.next]
			b.next++
			if s.hasResourceLocked(id) {
				b.results = append(b.results, domain.ItemOutcome{ResourceID: id, Status: domain.ItemSuccess})
			} else {
				b.results = append(b.results, domain.ItemOutcome{
					ResourceID: id,
					Status:     domain.ItemError,
					Message:    "resource not found",
				})
			}
		}
	}

	status := &BatchStatus{Status: domain.BatchInProgress}
	for _, r := range b.results {
		status.Completed++
		switch r.Status {
		case domain.ItemSuccess:
			status.Successful++
		case domain.ItemError:
			status.Failed++
		case domain.ItemSkipped:
			status.Skipped++
		}
	}
	status.Results = append([]domain.ItemOutcome(nil), b.results...)

	if b.next >= len(b.targets) || b.cancelled {
		status.Status = domain.BatchCompleted
	}
	return status, nil
}

func (s *DemoShim) hasResourceLocked(id string) bool {
	for _, r := range s.resources {
		if r.ID == id {
			return true
		}
	}
	return false
}

// CancelBatch marks the remaining targets skipped and finishes the batch.
func (s *DemoShim) CancelBatch(ctx context.Context, batchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.batches[batchID]
	if !ok {
		return domain.ErrNotFound
	}
	if b.cancelled {
		return nil
	}
	b.cancelled = true
	for ; b.next < len(b.targets); b.next++ {
		b.results = append(b.results, domain.ItemOutcome{
			ResourceID: b.targets[b.next],
			Status:     domain.ItemSkipped,
			Message:    "cancelled before execution",
		})
	}

	log.Printf("[DemoShim] Cancelled batch %s", batchID)
	return nil
}
