package build

import "testing"

func TestDeploymentType_String(t *testing.T) {
	tests := map[DeploymentType]string{
		Development:        "development",
		Production:         "production",
		DeploymentType(42): "unknown",
	}
	for d, want := range tests {
		if got := d.String(); got != want {
			t.Errorf("DeploymentType(%d).String() = %q, want %q", d, got, want)
		}
	}
}

func TestDeployment_Exclusive(t *testing.T) {
	if Deployment != Development && Deployment != Production {
		t.Fatalf("deployment %s must be exactly one of dev or prod", Deployment)
	}
}
