package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"prodash/internal/model"
)

func ptr(f float64) *float64 { return &f }

func strPtr(s string) *string { return &s }

func TestTotalProgressSumsCompletedWeights(t *testing.T) {
	tasks := []model.Task{
		{Completed: true, Percentage: 4},
		{Completed: true, Percentage: 2},
		{Completed: false, Percentage: 10},
	}
	assert.Equal(t, 6.0, TotalProgress(tasks))
}

func TestTotalProgressIsPure(t *testing.T) {
	tasks := []model.Task{
		{Completed: true, Percentage: 3.5},
		{Completed: true, Percentage: 1.5},
	}
	first := TotalProgress(tasks)
	second := TotalProgress(tasks)
	assert.Equal(t, first, second)
	assert.Equal(t, 5.0, first)
}

func TestTotalProgressEmpty(t *testing.T) {
	assert.Equal(t, 0.0, TotalProgress(nil))
}

func TestRevenueFullPriceForTasklessFolder(t *testing.T) {
	folders := []model.Folder{
		{ID: "f1", Name: "untouched project", Price: ptr(10000)},
	}
	assert.Equal(t, 10000.0, Revenue(folders, nil))
}

func TestRevenuePartialAttribution(t *testing.T) {
	folders := []model.Folder{
		{ID: "f1", Name: "client work", Price: ptr(10000)},
	}
	tasks := []model.Task{
		{ID: "t1", FolderID: strPtr("f1"), Completed: true},
		{ID: "t2", FolderID: strPtr("f1"), Completed: true},
		{ID: "t3", FolderID: strPtr("f1"), Completed: false},
		{ID: "t4", FolderID: strPtr("f1"), Completed: false},
	}
	assert.Equal(t, 5000.0, Revenue(folders, tasks))

	for i := range tasks {
		tasks[i].Completed = true
	}
	// Exactly the price, not a rounded approximation of 100%.
	assert.Equal(t, 10000.0, Revenue(folders, tasks))
}

func TestRevenueRoundsOnceAtTheEnd(t *testing.T) {
	folders := []model.Folder{
		{ID: "a", Name: "a", Price: ptr(5000)},
		{ID: "b", Name: "b", Price: ptr(3000)},
	}
	tasks := []model.Task{
		{ID: "t1", FolderID: strPtr("b"), Completed: true},
		{ID: "t2", FolderID: strPtr("b"), Completed: false},
	}
	assert.Equal(t, 6500.0, Revenue(folders, tasks))

	// Per-folder rounding would differ on uneven splits: 1 of 3 tasks of
	// a 1000 folder is 333.33..; summed with 2/3 of another 1000 folder
	// it must round the 999.99.. total to 1000, not 333+667.
	folders = []model.Folder{
		{ID: "a", Name: "a", Price: ptr(1000)},
		{ID: "b", Name: "b", Price: ptr(1000)},
	}
	tasks = []model.Task{
		{ID: "t1", FolderID: strPtr("a"), Completed: true},
		{ID: "t2", FolderID: strPtr("a"), Completed: false},
		{ID: "t3", FolderID: strPtr("a"), Completed: false},
		{ID: "t4", FolderID: strPtr("b"), Completed: true},
		{ID: "t5", FolderID: strPtr("b"), Completed: true},
		{ID: "t6", FolderID: strPtr("b"), Completed: false},
	}
	assert.Equal(t, 1000.0, Revenue(folders, tasks))
}

func TestRevenueIgnoresUnpricedFolders(t *testing.T) {
	folders := []model.Folder{
		{ID: "f1", Name: "free project"},
		{ID: "f2", Name: "paid project", Price: ptr(2000)},
	}
	assert.Equal(t, 2000.0, Revenue(folders, nil))
}

func TestRevenueIgnoresOrphanedTasks(t *testing.T) {
	folders := []model.Folder{
		{ID: "f1", Name: "paid", Price: ptr(1000)},
	}
	tasks := []model.Task{
		{ID: "t1", Completed: true}, // detached, attributes nothing
		{ID: "t2", FolderID: strPtr("f1"), Completed: true},
	}
	assert.Equal(t, 1000.0, Revenue(folders, tasks))
}

func TestEstimateRevenue(t *testing.T) {
	assert.Equal(t, 4200.0, EstimateRevenue(42, 10000))
	assert.Equal(t, 0.0, EstimateRevenue(0, 10000))
}
