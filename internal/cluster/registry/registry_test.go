package registry

import (
	"testing"

	"github.com/hailstorm-project/hailstorm/internal/cluster/fixed"
	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

func TestNewBackendRejectsElasticWithoutConfig(t *testing.T) {
	if _, err := NewBackend(hscontext.Background(), model.ClusterTypeAmazonCloud, nil, nil); err == nil {
		t.Fatal("expected an error for elastic kind with nil config")
	}
}

func TestNewBackendRejectsFixedWithoutConfig(t *testing.T) {
	if _, err := NewBackend(hscontext.Background(), model.ClusterTypeDataCenter, nil, nil); err == nil {
		t.Fatal("expected an error for fixed kind with nil config")
	}
}

func TestNewBackendRejectsUnknownKind(t *testing.T) {
	if _, err := NewBackend(hscontext.Background(), model.ClusterType("bogus"), nil, nil); err == nil {
		t.Fatal("expected an error for an unknown cluster kind")
	}
}

func TestNewBackendBuildsFixedBackend(t *testing.T) {
	fixedCfg := &fixed.Config{DataCenter: &model.DataCenter{Machines: []string{"10.0.0.1"}, UserName: "ubuntu"}}
	backend, err := NewBackend(hscontext.Background(), model.ClusterTypeDataCenter, nil, fixedCfg)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	if backend == nil {
		t.Fatal("expected a non-nil backend")
	}
}

