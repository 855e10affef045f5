package version

import (
	"fmt"
	"runtime"
	"strings"

	goversion "github.com/hashicorp/go-version"

	"github.com/satishbabariya/relq/internal/core/query/domain"
)

// Set at link time with -ldflags "-X".
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// dialects are the SQL dialects the generator targets, reference first.
var dialects = []domain.Dialect{domain.SQLServer, domain.SQLite, domain.PostgreSQL, domain.MySQL}

// Info describes a relq build.
type Info struct {
	Version   string
	BuildDate string
	GitCommit string
	GoVersion string
	Platform  string
	// Dialects lists the SQL dialects queries can be translated to.
	Dialects []domain.Dialect
}

// Get returns the build information of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Dialects:  append([]domain.Dialect(nil), dialects...),
	}
}

// Supports reports whether queries can be translated to d.
func (i Info) Supports(d domain.Dialect) bool {
	for _, have := range i.Dialects {
		if have == d {
			return true
		}
	}
	return false
}

func (i Info) String() string {
	return fmt.Sprintf("relq version %s (%s %s)", i.Version, i.Platform, i.GoVersion)
}

// FullString adds build details and the supported dialects.
func (i Info) FullString() string {
	names := make([]string, len(i.Dialects))
	for k, d := range i.Dialects {
		names[k] = string(d)
	}
	return fmt.Sprintf(`relq version %s
Build Date: %s
Git Commit: %s
Platform: %s
Go Version: %s
Dialects: %s`, i.Version, i.BuildDate, i.GitCommit, i.Platform, i.GoVersion, strings.Join(names, ", "))
}

// Satisfies reports whether the version meets a constraint such as
// ">= 0.1, < 1.0".
func (i Info) Satisfies(constraint string) (bool, error) {
	v, err := goversion.NewVersion(i.Version)
	if err != nil {
		return false, fmt.Errorf("invalid version format: %w", err)
	}
	c, err := goversion.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("invalid version constraint: %w", err)
	}
	return c.Check(v), nil
}
