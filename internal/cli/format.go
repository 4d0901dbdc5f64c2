package cli

import (
	"errors"
	"strings"

	"github.com/fatih/color"

	"github.com/me/workgate/pkg/model"
)

var (
	okColor   = color.New(color.FgGreen)
	badColor  = color.New(color.FgRed)
	warnColor = color.New(color.FgYellow)
)

// errStopStream ends Client.Stream without reporting an error.
var errStopStream = errors.New("stop stream")

func joinKinds(kinds []model.ConditionKind) string {
	if len(kinds) == 0 {
		return "-"
	}
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

func joinIDs(ids model.JobSet) string {
	return strings.Join(ids, " ")
}

func stateLabel(s model.JobState) string {
	switch s {
	case model.JobStateRunning, model.JobStateSucceeded:
		return okColor.Sprint(s)
	case model.JobStateFailed:
		return badColor.Sprint(s)
	case model.JobStateCancelled:
		return warnColor.Sprint(s)
	}
	return string(s)
}

func constraintLabel(st model.ConditionStatus) string {
	switch {
	case st.Error != "":
		return warnColor.Sprint("ERROR        ")
	case st.Constrained:
		return badColor.Sprint("CONSTRAINED  ")
	}
	return okColor.Sprint("UNCONSTRAINED")
}
