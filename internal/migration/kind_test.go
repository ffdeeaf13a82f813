package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/invsync/internal/errors"
	"github.com/tphakala/invsync/internal/source"
)

func noopTransform(*TransformContext, source.Entity) error { return nil }

func pipeline(kind, collection string, deps ...string) Pipeline {
	return Pipeline{
		Descriptor: KindDescriptor{Kind: kind, Collection: collection, DependsOn: deps},
		Transform:  noopTransform,
	}
}

func TestRegistryRegisterValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    Pipeline
	}{
		{"empty kind", pipeline("", "things")},
		{"separator in kind", pipeline("Sales-Order", "orders")},
		{"missing collection", pipeline("Thing", "")},
		{"nested collection", pipeline("Thing", "a/b")},
		{"no transform", Pipeline{Descriptor: KindDescriptor{Kind: "Thing", Collection: "things"}}},
		{"bad strategy", Pipeline{
			Descriptor: KindDescriptor{Kind: "Thing", Collection: "things", BasePathStrategy: "sideways"},
			Transform:  noopTransform,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := NewRegistry().Register(tt.p)
			require.Error(t, err)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestRegistryDefaultsAndDuplicates(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, reg.Register(pipeline("Plant", "plants")))

	p, ok := reg.Get("Plant")
	require.True(t, ok)
	assert.Equal(t, BasePathConverted, p.Descriptor.BasePathStrategy)

	err := reg.Register(pipeline("Plant", "plants"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConflict))

	assert.Panics(t, func() { reg.MustRegister(pipeline("Plant", "plants")) })
	_, ok = reg.Get("Missing")
	assert.False(t, ok)
}

func TestRegistryOrder(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.MustRegister(pipeline("SalesOrder", "orders", "Customer", "Product"))
	reg.MustRegister(pipeline("Customer", "customers"))
	reg.MustRegister(pipeline("Product", "products", "Plant"))
	reg.MustRegister(pipeline("Plant", "plants"))
	note := pipeline("Note", "notes", "Customer")
	note.Descriptor.NestedUnder = "Customer"
	reg.MustRegister(note)

	all, err := reg.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"Customer", "Plant", "Product", "SalesOrder", "Note"}, all)

	sub, err := reg.Order("Product")
	require.NoError(t, err)
	assert.Equal(t, []string{"Plant", "Product"}, sub)

	// nested kinds follow their parent
	withNested, err := reg.Order("Customer")
	require.NoError(t, err)
	assert.Equal(t, []string{"Customer", "Note"}, withNested)

	_, err = reg.Order("Invoice")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestRegistryOrderDetectsCycles(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.MustRegister(pipeline("A", "a", "C"))
	reg.MustRegister(pipeline("B", "b", "A"))
	reg.MustRegister(pipeline("C", "c", "B"))

	_, err := reg.Order()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.Contains(t, err.Error(), "A -> C -> B -> A")
}

func TestRegistryOrderUnknownDependency(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.MustRegister(pipeline("Order", "orders", "Ghost"))
	_, err := reg.Order()
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestRegistryApply(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.MustRegister(pipeline("Supply", "supplies"))

	legacy := BasePathLegacy
	filter := true
	require.NoError(t, reg.Apply(KindOverride{Kind: "Supply", BasePathStrategy: &legacy, FilterSoftDeletes: &filter}))

	p, _ := reg.Get("Supply")
	assert.Equal(t, BasePathLegacy, p.Descriptor.BasePathStrategy)
	assert.True(t, p.Descriptor.FilterSoftDeletes)
	assert.False(t, p.Descriptor.PostProcess, "nil fields are left alone")

	bad := BasePathStrategy("nowhere")
	require.Error(t, reg.Apply(KindOverride{Kind: "Supply", BasePathStrategy: &bad}))
	p, _ = reg.Get("Supply")
	assert.Equal(t, BasePathLegacy, p.Descriptor.BasePathStrategy, "rejected override is not applied")

	require.ErrorIs(t, reg.Apply(KindOverride{Kind: "Nope"}), ErrUnknownKind)
}

func TestKindRootPath(t *testing.T) {
	t.Parallel()

	cfg := Config{BasePath: "projects/acme", LegacyBasePath: "legacy/acme"}
	d := KindDescriptor{Kind: "Plant", Collection: "plants", BasePathStrategy: BasePathConverted}
	assert.Equal(t, "projects/acme/plants", d.RootPath(&cfg))

	d.BasePathStrategy = BasePathLegacy
	assert.Equal(t, "legacy/acme/plants", d.RootPath(&cfg))
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.BasePath = "projects"
	cfg.Strategy = "random"
	cfg.RateLimit = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	assert.Contains(t, err.Error(), "must address a document")
	assert.Contains(t, err.Error(), "unknown strategy")
	assert.Contains(t, err.Error(), "rate limit")

	filled := Config{}.withDefaults()
	assert.Equal(t, DefaultWorkers, filled.Workers)
	assert.Equal(t, DefaultMaxWrites, filled.MaxWrites)
	assert.Equal(t, StrategyParallel, filled.Strategy)
}

func TestPhaseNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "deleting", PhaseDeleting.String())
	assert.True(t, PhaseDone.Terminal())
	assert.True(t, PhaseFailed.Terminal())
	assert.False(t, PhaseLoading.Terminal())
}
