package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type scheduleRequest struct {
	MeetingID string `json:"meeting_id" validate:"required,uuid4"`
	Channel   string `json:"channel" validate:"required,oneof=email telegram"`
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(scheduleRequest{})
	require.Error(t, err)

	failures, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, failures, 2)
	require.Equal(t, "meeting_id", failures[0].Field)
	require.Equal(t, "required", failures[0].Tag)
}

func TestValidateStructPasses(t *testing.T) {
	req := scheduleRequest{
		MeetingID: "2f1d9c70-98a1-4a58-9be6-0df51f3cbb6d",
		Channel:   "email",
	}
	require.NoError(t, ValidateStruct(req))
}

func TestValidateStructRejectsUnknownChannel(t *testing.T) {
	req := scheduleRequest{
		MeetingID: "2f1d9c70-98a1-4a58-9be6-0df51f3cbb6d",
		Channel:   "pager",
	}
	err := ValidateStruct(req)
	require.Error(t, err)
}
