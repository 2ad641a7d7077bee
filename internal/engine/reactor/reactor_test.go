package reactor_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.ravenpm.dev/raven/internal/core/domain"
	"go.ravenpm.dev/raven/internal/core/ports/mocks"
	"go.ravenpm.dev/raven/internal/engine/reactor"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

const testSum = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func recipe(name, version string, deps ...string) *domain.Recipe {
	return &domain.Recipe{
		Name:         name,
		Version:      version,
		Dependencies: deps,
		SourceURL:    "https://example.org/" + name + ".tar.gz",
		SHA256Sum:    testSum,
	}
}

func installedPkg(name, version string, deps ...string) *domain.InstalledPackage {
	return &domain.InstalledPackage{
		Name:         domain.NewInternedString(name),
		Version:      domain.MustParseVersion(version),
		InstalledAt:  time.Now().UTC(),
		Dependencies: deps,
	}
}

type fixture struct {
	store   *mocks.MockRecipeStore
	catalog *mocks.MockCatalog
	reactor *reactor.Reactor
}

func newFixture(t *testing.T) *fixture {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockRecipeStore(ctrl)
	cat := mocks.NewMockCatalog(ctrl)
	return &fixture{
		store:   store,
		catalog: cat,
		reactor: reactor.New(store, cat),
	}
}

func names(plan []*domain.Recipe) []string {
	out := make([]string, 0, len(plan))
	for _, r := range plan {
		out = append(out, r.Name)
	}
	return out
}

func TestReactor_Plan_LeafPackage(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().Load("libdummy").Return(recipe("libdummy", "1.0.0"), nil)
	f.catalog.EXPECT().Get("libdummy").Return(nil, nil).AnyTimes()

	plan, err := f.reactor.Plan("libdummy")
	require.NoError(t, err)
	require.Equal(t, []string{"libdummy"}, names(plan))
}

func TestReactor_Plan_DependencyOrder(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().Load("hello").Return(recipe("hello", "2.10.0", "libdummy"), nil)
	f.store.EXPECT().Load("libdummy").Return(recipe("libdummy", "1.0.0"), nil)
	f.catalog.EXPECT().Get(gomock.Any()).Return(nil, nil).AnyTimes()

	plan, err := f.reactor.Plan("hello")
	require.NoError(t, err)
	require.Equal(t, []string{"libdummy", "hello"}, names(plan))
}

func TestReactor_Plan_InstalledDepPruned(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().Load("hello").Return(recipe("hello", "2.10.0", "libdummy >= 1.0.0"), nil)
	f.catalog.EXPECT().Get("hello").Return(nil, nil)
	f.catalog.EXPECT().Get("libdummy").Return(installedPkg("libdummy", "1.5.0"), nil)

	plan, err := f.reactor.Plan("hello")
	require.NoError(t, err)
	require.Equal(t, []string{"hello"}, names(plan))
}

func TestReactor_Plan_InstalledDepTooOld_RebuiltFromRecipe(t *testing.T) {
	f := newFixture(t)
	// Installed libdummy 1.0.0 does not satisfy >= 2.0.0, but a 2.0.0
	// recipe exists, so the dependency is rebuilt.
	f.store.EXPECT().Load("app").Return(recipe("app", "1.0.0", "libdummy >= 2.0.0"), nil)
	f.store.EXPECT().Load("libdummy").Return(recipe("libdummy", "2.0.0"), nil)
	f.catalog.EXPECT().Get("app").Return(nil, nil)
	f.catalog.EXPECT().Get("libdummy").Return(installedPkg("libdummy", "1.0.0"), nil).AnyTimes()
	f.catalog.EXPECT().ReverseDeps("libdummy").Return(nil, nil).AnyTimes()

	plan, err := f.reactor.Plan("app")
	require.NoError(t, err)
	require.Equal(t, []string{"libdummy", "app"}, names(plan))
}

func TestReactor_Plan_VersionMismatch(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().Load("app_strict").Return(recipe("app_strict", "1.0.0", "libdummy >= 2.0.0"), nil)
	f.store.EXPECT().Load("libdummy").Return(recipe("libdummy", "1.0.0"), nil)
	f.catalog.EXPECT().Get("app_strict").Return(nil, nil)
	f.catalog.EXPECT().Get("libdummy").Return(installedPkg("libdummy", "1.0.0"), nil)

	_, err := f.reactor.Plan("app_strict")
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrVersionMismatch))
	require.Contains(t, err.Error(), "Version mismatch")

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok)
	require.Equal(t, "libdummy", zErr.Metadata()["package"])
	require.Equal(t, "1.0.0", zErr.Metadata()["available"])
}

func TestReactor_Plan_Unresolved(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().Load("app").Return(recipe("app", "1.0.0", "ghost"), nil)
	f.store.EXPECT().Load("ghost").Return(nil, zerr.With(zerr.Wrap(domain.ErrRecipeNotFound, "no recipe file"), "package", "ghost"))
	f.catalog.EXPECT().Get(gomock.Any()).Return(nil, nil).AnyTimes()

	_, err := f.reactor.Plan("app")
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrUnresolvedDependency))
	require.Contains(t, err.Error(), "Unresolved dependency")
}

func TestReactor_Plan_TargetRecipeMissing(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().Load("ghost").Return(nil, zerr.With(zerr.Wrap(domain.ErrRecipeNotFound, "no recipe file"), "package", "ghost"))

	_, err := f.reactor.Plan("ghost")
	require.True(t, errors.Is(err, domain.ErrRecipeNotFound))
}

func TestReactor_Plan_Cycle(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().Load("a").Return(recipe("a", "1.0.0", "b"), nil).AnyTimes()
	f.store.EXPECT().Load("b").Return(recipe("b", "1.0.0", "a"), nil).AnyTimes()
	f.catalog.EXPECT().Get(gomock.Any()).Return(nil, nil).AnyTimes()

	_, err := f.reactor.Plan("a")
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrCycle))
	require.Contains(t, err.Error(), "Cycle")

	zErr, ok := err.(*zerr.Error)
	require.True(t, ok)
	cycle, _ := zErr.Metadata()["cycle"].(string)
	require.True(t, strings.Contains(cycle, "a -> b -> a") || strings.Contains(cycle, "b -> a -> b"),
		"unexpected cycle path %q", cycle)
}

func TestReactor_Plan_AlreadyInstalled(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().Load("libdummy").Return(recipe("libdummy", "1.0.0"), nil)
	f.catalog.EXPECT().Get("libdummy").Return(installedPkg("libdummy", "1.0.0"), nil)

	_, err := f.reactor.Plan("libdummy")
	require.True(t, errors.Is(err, domain.ErrAlreadyInstalled))
}

func TestReactor_Plan_VersionChange_Replans(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().Load("libdummy").Return(recipe("libdummy", "2.0.0"), nil)
	f.catalog.EXPECT().Get("libdummy").Return(installedPkg("libdummy", "1.0.0"), nil).AnyTimes()
	f.catalog.EXPECT().ReverseDeps("libdummy").Return(nil, nil)

	plan, err := f.reactor.Plan("libdummy")
	require.NoError(t, err)
	require.Equal(t, []string{"libdummy"}, names(plan))
}

func TestReactor_Plan_ConflictingReverseDep(t *testing.T) {
	f := newFixture(t)
	// hello requires libdummy < 2.0.0; upgrading libdummy to 2.0.0 must be
	// rejected.
	f.store.EXPECT().Load("libdummy").Return(recipe("libdummy", "2.0.0"), nil)
	f.catalog.EXPECT().Get("libdummy").Return(installedPkg("libdummy", "1.0.0"), nil)
	f.catalog.EXPECT().ReverseDeps("libdummy").Return([]string{"hello"}, nil)
	f.catalog.EXPECT().Get("hello").Return(installedPkg("hello", "2.10.0", "libdummy < 2.0.0"), nil)

	_, err := f.reactor.Plan("libdummy")
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrConflictingReverseDep))
	require.Contains(t, err.Error(), "Version mismatch")
}

func TestReactor_Plan_Diamond(t *testing.T) {
	f := newFixture(t)
	f.store.EXPECT().Load("app").Return(recipe("app", "1.0.0", "libb", "libc"), nil)
	f.store.EXPECT().Load("libb").Return(recipe("libb", "1.0.0", "libd"), nil)
	f.store.EXPECT().Load("libc").Return(recipe("libc", "1.0.0", "libd"), nil)
	f.store.EXPECT().Load("libd").Return(recipe("libd", "1.0.0"), nil).AnyTimes()
	f.catalog.EXPECT().Get(gomock.Any()).Return(nil, nil).AnyTimes()

	plan, err := f.reactor.Plan("app")
	require.NoError(t, err)
	require.Len(t, plan, 4)

	pos := map[string]int{}
	for i, r := range plan {
		pos[r.Name] = i
	}
	require.Less(t, pos["libd"], pos["libb"])
	require.Less(t, pos["libd"], pos["libc"])
	require.Equal(t, 3, pos["app"])
}
