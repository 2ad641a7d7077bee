package domain

import "go.trai.ch/zerr"

var (
	// ErrVersionParse is returned when a version string is not a strict
	// MAJOR.MINOR.PATCH triple.
	ErrVersionParse = zerr.New("invalid version")

	// ErrConstraintParse is returned when a dependency constraint string
	// does not parse as `name` or `name OP version`.
	ErrConstraintParse = zerr.New("invalid dependency constraint")

	// ErrRecipeParse is returned when a recipe file is malformed or fails
	// validation.
	ErrRecipeParse = zerr.New("invalid recipe")

	// ErrRecipeNotFound is returned when no recipe file exists for a name.
	ErrRecipeNotFound = zerr.New("recipe not found")

	// ErrCycle is returned when the dependency graph contains a cycle.
	ErrCycle = zerr.New("Cycle detected in dependency graph")

	// ErrUnresolvedDependency is returned when a dependency is neither
	// installed nor available as a recipe.
	ErrUnresolvedDependency = zerr.New("Unresolved dependency")

	// ErrVersionMismatch is returned when the only available recipe for a
	// dependency does not satisfy the declared constraint.
	ErrVersionMismatch = zerr.New("Version mismatch")

	// ErrConflictingReverseDep is returned when installing a new version
	// would break a constraint declared by an already-installed package.
	ErrConflictingReverseDep = zerr.New("Version mismatch against installed reverse dependency")

	// ErrFileConflict is returned when two packages claim the same path.
	ErrFileConflict = zerr.New("File conflict")

	// ErrIntegrity is returned when a downloaded source fails its SHA-256
	// check.
	ErrIntegrity = zerr.New("Integrity error")

	// ErrDownload is returned when the download retry budget is exhausted.
	ErrDownload = zerr.New("download failed")

	// ErrBuild is returned when a build or install command exits non-zero.
	ErrBuild = zerr.New("build command failed")

	// ErrSandboxSetup is returned when the sandbox environment cannot be
	// prepared (unshare, mount, or chroot failure).
	ErrSandboxSetup = zerr.New("sandbox setup failed")

	// ErrMove is returned when a staged file cannot be moved into the live
	// root.
	ErrMove = zerr.New("failed to move staged file")

	// ErrRemoveFile is returned when an owned file cannot be unlinked
	// during removal.
	ErrRemoveFile = zerr.New("failed to remove owned file")

	// ErrCommit is returned when the catalog commit itself fails after all
	// files have been moved.
	ErrCommit = zerr.New("catalog commit failed")

	// ErrLocked is returned when another process holds the operation lock.
	ErrLocked = zerr.New("Locked by another raven process")

	// ErrInUse is returned when removal is blocked by installed reverse
	// dependencies.
	ErrInUse = zerr.New("package is required by installed packages")

	// ErrNotInstalled is returned when an operation targets a package that
	// is not in the catalog.
	ErrNotInstalled = zerr.New("package is not installed")

	// ErrAlreadyInstalled is returned when the requested package is already
	// installed at the requested version.
	ErrAlreadyInstalled = zerr.New("package is already installed")

	// ErrTxnActive is returned when Begin is called while a catalog
	// transaction is already open.
	ErrTxnActive = zerr.New("catalog transaction already active")

	// ErrNoTxn is returned when Commit or Rollback is called without an
	// open transaction.
	ErrNoTxn = zerr.New("no active catalog transaction")
)
