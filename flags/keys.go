package flags

import (
	"strconv"
	"strings"

	"github.com/willowbb/willow/target"
)

// Storage key layout. Flag records are objects at flag:<id>; every index
// is a sorted set of flag ids scored by the flag's relevant timestamp.
const (
	keyCounters     = "global"
	fieldNextFlagID = "nextFlagId"

	// all flags, by creation time; the no-filter default
	keyDatetime = "flags:datetime"

	// dedup set: member type:targetId:uid, score flagId
	keyDedup = "flags:hash"

	// per-owner tally of flags received on their posts
	keyOwnerTally = "users:flags"

	prefixByReporter  = "flags:byReporter:"
	prefixByType      = "flags:byType:"
	prefixByState     = "flags:byState:"
	prefixByAssignee  = "flags:byAssignee:"
	prefixByTargetUID = "flags:byTargetUid:"
	prefixByCid       = "flags:byCid:"
	prefixByPid       = "flags:byPid:"
)

func flagKey(flagID int64) string {
	return "flag:" + strconv.FormatInt(flagID, 10)
}

func historyKey(flagID int64) string {
	return flagKey(flagID) + ":history"
}

func notesKey(flagID int64) string {
	return flagKey(flagID) + ":notes"
}

func dedupKey(kind target.Kind, targetID, reporterUID string) string {
	return strings.Join([]string{string(kind), targetID, reporterUID}, ":")
}
