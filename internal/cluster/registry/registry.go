// Package registry is the one place that knows about every concrete
// cluster.Backend implementation, so internal/cluster itself stays free of
// a dependency on either.
package registry

import (
	"github.com/pkg/errors"

	"github.com/hailstorm-project/hailstorm/internal/cluster"
	"github.com/hailstorm-project/hailstorm/internal/cluster/elastic"
	"github.com/hailstorm-project/hailstorm/internal/cluster/fixed"
	"github.com/hailstorm-project/hailstorm/internal/hscontext"
	"github.com/hailstorm-project/hailstorm/internal/store/model"
)

// NewBackend selects exactly one concrete cluster.Backend for kind, never
// an open hierarchy of cluster implementations.
func NewBackend(ctx *hscontext.Context, kind model.ClusterType, elasticParams *elastic.Config, fixedParams *fixed.Config) (cluster.Backend, error) {
	switch kind {
	case model.ClusterTypeAmazonCloud:
		if elasticParams == nil {
			return nil, errors.New("elastic backend requested without configuration")
		}
		return elastic.New(ctx, *elasticParams)
	case model.ClusterTypeDataCenter:
		if fixedParams == nil {
			return nil, errors.New("fixed backend requested without configuration")
		}
		return fixed.New(*fixedParams), nil
	default:
		return nil, errors.Errorf("unknown cluster type %q", kind)
	}
}
