package delegate

import "github.com/claude-swarm/swarm/internal/card"

// specializationBonusCap bounds the total specialization bonus added to a
// score, per spec §4.K.
const specializationBonusCap = 0.15

// priorityBoost returns the additive score adjustment for a task's
// priority, per spec §4.K.
func priorityBoost(priority string) float64 {
	switch priority {
	case "critical":
		return 0.10
	case "high":
		return 0.05
	case "low":
		return -0.05
	default:
		return 0
	}
}

// Score computes an agent's fitness for a task's skill requirements, per
// spec §4.K: weighted mean of per-skill proficiency × importance, plus a
// capped specialization bonus, plus a priority boost, clamped to [0,1].
// With no requirements, every agent scores 0.5 + priority boost. The
// returned per-skill map mirrors each requirement's contribution,
// including zeroes for skills below their minimum proficiency.
func Score(c card.Card, requirements []Requirement, priority string) (float64, map[string]float64) {
	boost := priorityBoost(priority)
	if len(requirements) == 0 {
		return clamp01(0.5 + boost), map[string]float64{}
	}

	perSkill := make(map[string]float64, len(requirements))
	var weightedSum, totalImportance, bonus float64

	for _, req := range requirements {
		proficiency := c.SuccessRates[req.Skill]
		minProf := req.MinimumProficiency
		if minProf == 0 {
			minProf = DefaultMinimumProficiency
		}
		contribution := proficiency
		if proficiency < minProf {
			contribution = 0
		}
		perSkill[req.Skill] = contribution
		weightedSum += contribution * req.Importance
		totalImportance += req.Importance

		if containsString(c.Specializations, req.Skill) {
			bonus += 0.05 * req.Importance
		}
	}
	if bonus > specializationBonusCap {
		bonus = specializationBonusCap
	}

	var base float64
	if totalImportance > 0 {
		base = weightedSum / totalImportance
	}
	return clamp01(base + bonus + boost), perSkill
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
