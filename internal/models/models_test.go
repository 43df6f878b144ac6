package models

import "testing"

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	if err := base.BeforeCreate(nil); err != nil {
		t.Fatalf("before create: %v", err)
	}
	if base.ID == "" {
		t.Fatal("expected base model ID to be generated")
	}
}

func TestEmbeddedModelsUseBaseBeforeCreate(t *testing.T) {
	cases := []struct {
		name  string
		model func() *BaseModel
	}{
		{"user", func() *BaseModel {
			u := &User{}
			return &u.BaseModel
		}},
		{"meeting", func() *BaseModel {
			m := &Meeting{}
			return &m.BaseModel
		}},
		{"context", func() *BaseModel {
			c := &Context{}
			return &c.BaseModel
		}},
		{"notification", func() *BaseModel {
			n := &Notification{}
			return &n.BaseModel
		}},
		{"attendee_info", func() *BaseModel {
			a := &AttendeeInfo{}
			return &a.BaseModel
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			model := tc.model()
			if err := model.BeforeCreate(nil); err != nil {
				t.Fatalf("before create: %v", err)
			}
			if model.ID == "" {
				t.Fatal("expected ID to be generated")
			}
		})
	}
}

func TestNotificationIsTerminal(t *testing.T) {
	cases := map[string]bool{
		StatusScheduled: false,
		StatusSent:      false,
		StatusFailed:    false,
		StatusDelivered: true,
		StatusCancelled: true,
	}
	for status, want := range cases {
		n := Notification{Status: status}
		if got := n.IsTerminal(); got != want {
			t.Fatalf("IsTerminal(%s) = %v, want %v", status, got, want)
		}
	}
}
