package version

import (
	"fmt"
	"os/exec"
	"runtime/debug"
	"strings"
)

// Set through -ldflags at release time.
var (
	Version = "0.1.0"
	Commit  = ""
	Date    = ""
)

type Info struct {
	Version string
	Commit  string
	Date    string
}

// Current resolves version metadata from ldflags, then the embedded build
// info, then git when run from a checkout.
func Current() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}
	if build, ok := debug.ReadBuildInfo(); ok {
		info = fillFromBuildInfo(info, build)
	}
	info.Version = resolveVersion(info.Version, runGit)
	return info
}

func (i Info) String() string {
	var extra []string
	if i.Commit != "" {
		extra = append(extra, "commit "+shortCommit(i.Commit))
	}
	if i.Date != "" {
		extra = append(extra, "built "+i.Date)
	}
	if len(extra) == 0 {
		return i.Version
	}
	return fmt.Sprintf("%s (%s)", i.Version, strings.Join(extra, ", "))
}

func fillFromBuildInfo(info Info, build *debug.BuildInfo) Info {
	for _, setting := range build.Settings {
		switch setting.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = setting.Value
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = setting.Value
			}
		case "vcs.modified":
			if setting.Value == "true" && info.Commit != "" && !strings.HasSuffix(info.Commit, "-dirty") {
				info.Commit += "-dirty"
			}
		}
	}
	return info
}

func shortCommit(commit string) string {
	dirty := strings.HasSuffix(commit, "-dirty")
	commit = strings.TrimSuffix(commit, "-dirty")
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if dirty {
		return commit + "-dirty"
	}
	return commit
}

func resolveVersion(base string, git func(...string) (string, error)) string {
	if base == "" {
		base = "0.0.0"
	}

	if _, err := git("rev-parse", "--git-dir"); err != nil {
		return base
	}
	if _, err := git("describe", "--tags", "--exact-match"); err == nil {
		return base
	}

	desc, err := git("describe", "--tags", "--dirty", "--always")
	if err != nil || desc == "" {
		return base
	}
	return base + "-" + strings.TrimPrefix(desc, "v"+base+"-")
}

func runGit(args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
