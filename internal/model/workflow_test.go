package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseWorkflowType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    WorkflowType
		wantErr bool
	}{
		{"precrafter", WorkflowPrecrafter, false},
		{"crafter", WorkflowCrafter, false},
		{"Crafter", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseWorkflowType(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidWorkflowType))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
