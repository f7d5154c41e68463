// Trophytrack - PlayStation Trophy Records and Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/trophytrack

package scoring

import (
	"strings"

	"github.com/tomtom215/trophytrack/internal/models"
)

// Name fragments that predict a title's difficulty class. Shovelware
// publishers ship trivial trophy lists; the notorious action titles and
// precision platformers earn the high weights. Everything else gets the
// AAA-standard default.
var (
	easyFragments = []string{
		"ratalaika",
		"sometimes you",
		"eastasiasoft",
		"pix arts",
	}
	hardFragments = []string{
		"dark souls",
		"bloodborne",
		"sekiro",
		"nioh",
		"hollow knight",
	}
	extremeFragments = []string{
		"super meat boy",
		"cuphead",
		"celeste",
		"crypt of the necrodancer",
	}
)

// SuggestDifficultyWeight proposes a difficulty weight for a title the
// system has never seen, based on its name. The suggestion applies only
// on first sight; operator-set weights are never overwritten.
func SuggestDifficultyWeight(titleName string) float64 {
	name := strings.ToLower(titleName)
	for _, f := range extremeFragments {
		if strings.Contains(name, f) {
			return models.DifficultyWeightMax
		}
	}
	for _, f := range hardFragments {
		if strings.Contains(name, f) {
			return 6.0
		}
	}
	for _, f := range easyFragments {
		if strings.Contains(name, f) {
			return models.DifficultyWeightMin
		}
	}
	return models.DifficultyWeightDefault
}
