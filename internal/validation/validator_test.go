// Pagemark - Social Reading Platform
// Copyright 2026 Pagemark Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagemark/pagemark

package validation

import (
	"strings"
	"testing"
)

type sampleRequest struct {
	UserID string `validate:"required"`
	Limit  int    `validate:"min=1,max=100"`
	Action string `validate:"omitempty,oneof=shown clicked converted dismissed"`
}

func TestValidateStructPasses(t *testing.T) {
	req := sampleRequest{UserID: "u1", Limit: 20, Action: "shown"}
	if err := ValidateStruct(&req); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateStructMissingRequired(t *testing.T) {
	req := sampleRequest{Limit: 20}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error for missing UserID")
	}

	fields := err.Fields()
	if len(fields) != 1 {
		t.Fatalf("got %d field errors, want 1", len(fields))
	}
	if fields[0].Field() != "UserID" {
		t.Errorf("field = %q, want UserID", fields[0].Field())
	}
	if !strings.Contains(err.Error(), "UserID is required") {
		t.Errorf("message does not name the field: %q", err.Error())
	}
}

func TestValidateStructOneOf(t *testing.T) {
	req := sampleRequest{UserID: "u1", Limit: 20, Action: "liked"}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error for unknown action")
	}
	if !strings.Contains(err.Error(), "must be one of") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestValidateStructMultipleErrors(t *testing.T) {
	req := sampleRequest{Limit: 0}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if len(err.Fields()) != 2 {
		t.Fatalf("got %d field errors, want 2", len(err.Fields()))
	}

	details := err.Details()
	if _, ok := details["fields"]; !ok {
		t.Error("multi-error details should carry a fields list")
	}
}
