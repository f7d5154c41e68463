// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

/*
Package scoring computes trophy scores and user levels.

A trophy is worth its tier's base points multiplied by the owning
title's difficulty weight, truncated to an integer. Totals are always
recomputed from scratch over the earned rows rather than adjusted
incrementally, so a re-sync can only converge, never drift.
*/
package scoring

import (
	"github.com/tomtom215/trophytrack/internal/models"
)

// levelThresholds maps cumulative score to level. A user is at the
// highest level whose threshold their total score meets.
var levelThresholds = []struct {
	Score int
	Level int
}{
	{0, 1},
	{100, 2},
	{350, 3},
	{850, 4},
	{1850, 5},
	{3850, 6},
	{7850, 7},
	{15350, 8},
	{27850, 9},
	{47850, 10},
	{80350, 11},
	{130350, 12},
	{205350, 13},
	{315350, 14},
	{475350, 15},
	{700350, 16},
	{1010350, 17},
	{1430350, 18},
	{1980350, 19},
	{2730350, 20},
}

// MaxLevel is the top of the level table.
const MaxLevel = 20

var levelNames = map[int]string{
	1:  "PS Noob",
	2:  "Button Masher",
	3:  "Trophy Hunter",
	4:  "Achievement Seeker",
	5:  "Digital Collector",
	6:  "Gaming Enthusiast",
	7:  "Skill Apprentice",
	8:  "Trophy Veteran",
	9:  "Gaming Gladiator",
	10: "Platinum Pursuer",
	11: "Elite Gamer",
	12: "Trophy Titan",
	13: "Achievement Ace",
	14: "Legendary Hunter",
	15: "Gaming Virtuoso",
	16: "Trophy Overlord",
	17: "Digital Deity",
	18: "PlayStation Paragon",
	19: "Trophy Transcendent",
	20: "Maybe I Was The PlayStation All Along",
}

// TrophyScore returns the points one trophy of the given tier is worth
// in the given title. The fractional part is truncated, matching how
// scores have always been displayed.
func TrophyScore(tier models.Tier, title *models.Title) int {
	weight := title.DifficultyWeight
	if weight < models.DifficultyWeightMin || weight > models.DifficultyWeightMax {
		weight = models.DifficultyWeightDefault
	}
	return int(float64(tier.BasePoints()) * weight)
}

// LevelFor returns the level for a total score and the progress toward
// the next level as a percentage. At MaxLevel progress is pinned to
// 100.
func LevelFor(totalScore int) (level int, progress float64) {
	if totalScore < 0 {
		totalScore = 0
	}
	level = 1
	for _, t := range levelThresholds {
		if totalScore >= t.Score {
			level = t.Level
		} else {
			break
		}
	}
	if level >= MaxLevel {
		return MaxLevel, 100
	}

	floor := levelThresholds[level-1].Score
	ceil := levelThresholds[level].Score
	progress = float64(totalScore-floor) / float64(ceil-floor) * 100
	return level, progress
}

// LevelName returns the display name for a level. Out-of-range levels
// map to the nearest table entry.
func LevelName(level int) string {
	if level < 1 {
		level = 1
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return levelNames[level]
}

// NextThreshold returns the score needed for the next level, or the
// current total requirement when already at MaxLevel.
func NextThreshold(level int) int {
	if level >= MaxLevel {
		return levelThresholds[MaxLevel-1].Score
	}
	if level < 1 {
		level = 1
	}
	return levelThresholds[level].Score
}
