package runner

import "github.com/atomikpanda/autozsh/internal/catalog"

// State is one step of the orchestrator.
type State int

const (
	StateStart State = iota
	StateDependencyCheck
	StateEnvironmentCheck
	StatePriorInstallCheck
	StateSelection
	StatePackageInstall
	StateFrameworkInstall
	StateThemeInstall
	StateToolsInstall
	StateFontInstall
	StatePluginInstall
	StateConfigMerge
	StateShellDefault
	StateDone
	StateRollback
	StateDryRunReport
)

var stateNames = map[State]string{
	StateStart:             "start",
	StateDependencyCheck:   "dependency-check",
	StateEnvironmentCheck:  "environment-check",
	StatePriorInstallCheck: "prior-install-check",
	StateSelection:         "selection",
	StatePackageInstall:    "package-install",
	StateFrameworkInstall:  "framework-install",
	StateThemeInstall:      "theme-install",
	StateToolsInstall:      "tools-install",
	StateFontInstall:       "font-install",
	StatePluginInstall:     "plugin-install",
	StateConfigMerge:       "config-merge",
	StateShellDefault:      "shell-default",
	StateDone:              "done",
	StateRollback:          "rollback",
	StateDryRunReport:      "dry-run-report",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// stageStates maps catalog stages to the state that installs them.
var stageStates = map[catalog.Stage]State{
	catalog.StagePackages:  StatePackageInstall,
	catalog.StageFramework: StateFrameworkInstall,
	catalog.StageTheme:     StateThemeInstall,
	catalog.StageTools:     StateToolsInstall,
	catalog.StageFonts:     StateFontInstall,
	catalog.StagePlugins:   StatePluginInstall,
}

var stageTitles = map[catalog.Stage]string{
	catalog.StagePackages:  "Packages",
	catalog.StageFramework: "Framework",
	catalog.StageTheme:     "Theme",
	catalog.StageTools:     "Tools",
	catalog.StageFonts:     "Fonts",
	catalog.StagePlugins:   "Plugins",
}
