// Package aggregate computes the derived dashboard metrics. Every
// function here is pure and recomputes from scratch on each call; there
// is no cached intermediate state to drift.
package aggregate

import (
	"math"

	"prodash/internal/model"
)

// TotalProgress sums the percentage weight of every completed task.
// Percentage is an additive score, not a 0-100 scale.
func TotalProgress(tasks []model.Task) float64 {
	var total float64
	for _, t := range tasks {
		if t.Completed {
			total += t.Percentage
		}
	}
	return total
}

// Revenue attributes earnings to priced folders from their tasks'
// completion ratio and sums the attributions.
//
// A priced folder with no tasks attributes its full price: a project
// that was started but never decomposed is assumed fully billable. A
// fully completed folder attributes its exact price, bypassing the
// ratio so floating point cannot shave the boundary case. Rounding
// happens once, on the final sum; rounding per folder before summing
// gives a different (wrong) answer.
func Revenue(folders []model.Folder, tasks []model.Task) float64 {
	byFolder := make(map[string][]model.Task)
	for _, t := range tasks {
		if t.FolderID != nil {
			byFolder[*t.FolderID] = append(byFolder[*t.FolderID], t)
		}
	}

	var total float64
	for _, f := range folders {
		price := f.PriceValue()
		if price <= 0 {
			continue
		}
		folderTasks := byFolder[f.ID]
		if len(folderTasks) == 0 {
			total += price
			continue
		}
		completed := 0
		for _, t := range folderTasks {
			if t.Completed {
				completed++
			}
		}
		completion := float64(completed) / float64(len(folderTasks))
		if completion >= 1 {
			total += price
		} else {
			total += price * completion
		}
	}
	return math.Round(total)
}

// EstimateRevenue approximates earnings from the progress total when no
// priced folders exist. This is the caller-level fallback path, not part
// of the exact-revenue contract.
func EstimateRevenue(totalPercentage, monthlyGoal float64) float64 {
	return math.Round(totalPercentage / 100 * monthlyGoal)
}
