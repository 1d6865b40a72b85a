package governance

import (
	"context"
	"errors"
	"testing"
)

func TestDefaultPolicyEngine_Evaluate(t *testing.T) {
	engine := NewDefaultPolicyEngine()
	ctx := context.Background()

	// Test Allow (Default)
	req1 := Request{Environment: "terminal", Action: "run command", Arguments: "ls -la"}
	res1, err := engine.Evaluate(ctx, req1)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res1.Effect != EffectAllow {
		t.Errorf("Expected EffectAllow, got %s", res1.Effect)
	}

	// Test Deny by action, case-insensitive
	engine.DenyAction("terminal", "install package")
	req2 := Request{Environment: "terminal", Action: "Install Package", Arguments: "left-pad"}
	res2, err := engine.Evaluate(ctx, req2)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res2.Effect != EffectDeny {
		t.Errorf("Expected EffectDeny, got %s", res2.Effect)
	}

	// Test Deny by argument pattern
	for _, p := range DefaultDenyPatterns {
		if err := engine.DenyArguments(p); err != nil {
			t.Fatalf("DenyArguments(%q) failed: %v", p, err)
		}
	}
	res3, _ := engine.Evaluate(ctx, Request{Environment: "terminal", Action: "run command", Arguments: "sudo rm  -rf /"})
	if res3.Effect != EffectDeny {
		t.Errorf("Expected EffectDeny for rm -rf, got %s", res3.Effect)
	}

	if err := engine.DenyArguments("("); err == nil {
		t.Error("Expected error for invalid pattern")
	}
}

func TestEnforce(t *testing.T) {
	ctx := context.Background()
	if err := Enforce(ctx, nil, Request{}); err != nil {
		t.Fatalf("nil engine should allow, got %v", err)
	}

	engine := NewDefaultPolicyEngine()
	engine.DenyAction("file system", "write file")
	err := Enforce(ctx, engine, Request{Environment: "file system", Action: "write file"})
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("Expected DeniedError, got %v", err)
	}
	if denied.Request.Action != "write file" {
		t.Errorf("unexpected request in error: %+v", denied.Request)
	}
}
