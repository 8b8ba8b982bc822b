package taskutil

import (
	"testing"

	"github.com/tradeops/taskforge/models"
)

func TestNormalizePriority(t *testing.T) {
	tests := []struct {
		input   string
		want    models.TaskPriority
		wantErr bool
	}{
		{"high", models.PriorityHigh, false},
		{" HIGH ", models.PriorityHigh, false},
		{"urgent", models.PriorityCritical, false},
		{"p0", models.PriorityCritical, false},
		{"normal", models.PriorityMedium, false},
		{"minor", models.PriorityLow, false},
		{"", "", false},
		{"whatever", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizePriority(tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("NormalizePriority(%q) = %q, %v; want %q, wantErr %v", tt.input, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		input   string
		want    models.TaskStatus
		wantErr bool
	}{
		{"in_progress", models.StatusInProgress, false},
		{"in-progress", models.StatusInProgress, false},
		{"wip", models.StatusInProgress, false},
		{"done", models.StatusCompleted, false},
		{"canceled", models.StatusCancelled, false},
		{"approved", models.StatusQAApproved, false},
		{"bogus", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeStatus(tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("NormalizeStatus(%q) = %q, %v; want %q, wantErr %v", tt.input, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		input   string
		want    models.TaskType
		wantErr bool
	}{
		{"feature", models.TypeFeature, false},
		{"bugfix", models.TypeBugFix, false},
		{"hotfix", models.TypeBugFix, false},
		{"docs", models.TypeDocumentation, false},
		{"spike", models.TypeInvestigation, false},
		{"epic", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeType(tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("NormalizeType(%q) = %q, %v; want %q, wantErr %v", tt.input, got, err, tt.want, tt.wantErr)
		}
	}
}
