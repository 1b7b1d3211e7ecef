// Copyright (c) 2019 Jonas R. <joroec@gmx.net>
// Licensed under the MIT License. You have obtained a copy of the License at
// the "LICENSE" file in this repository.

package eventlog

import "go.uber.org/zap"

// WriteJSONLines drains s to a zap.SugaredLogger, one log entry per event
// (one JSON object per event with a JSON-encoded logger, as cmd/pvmctl run
// builds), until s is closed. Intended for a CLI or automation harness that
// wants a durable run transcript alongside the live Stream consumer.
func WriteJSONLines(s Stream, logger *zap.SugaredLogger) {
	for ev := range s {
		logger.Infow(string(ev.Kind),
			"timestamp", ev.Timestamp,
			"challenge_id", ev.ChallengeID,
			"message", ev.Message,
			"probe_index", ev.ProbeIndex,
			"probe_type", ev.ProbeType,
			"passed", ev.Passed,
			"reasons", ev.Reasons,
			"score", ev.Score,
			"max_score", ev.MaxScore,
			"hint_cost_applied", ev.HintCostApplied,
		)
	}
}
