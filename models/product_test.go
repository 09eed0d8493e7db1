package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecomputeDerived(t *testing.T) {
	inv := DefaultInventory(2)
	assert.False(t, inv.SoldOut)
	assert.Empty(t, inv.SoldOutSizes)

	inv.Sizes["M"] = 0
	inv.TotalQuantity = 6
	inv.RecomputeDerived()
	assert.False(t, inv.SoldOut)
	assert.Equal(t, []string{"M"}, inv.SoldOutSizes)
	assert.True(t, inv.SizeSoldOut("M"))
	assert.False(t, inv.SizeSoldOut("L"))

	for _, size := range SizeLabels {
		inv.Sizes[size] = 0
	}
	inv.TotalQuantity = 0
	inv.RecomputeDerived()
	assert.True(t, inv.SoldOut)
	assert.Len(t, inv.SoldOutSizes, len(SizeLabels))
}

func TestValidSize(t *testing.T) {
	for _, size := range SizeLabels {
		assert.True(t, ValidSize(size))
	}
	assert.False(t, ValidSize("XXL"))
	assert.False(t, ValidSize("m"))
	assert.False(t, ValidSize(""))
}

func TestDefaultInventory(t *testing.T) {
	inv := DefaultInventory(10)
	assert.True(t, inv.TrackInventory)
	assert.Equal(t, 40, inv.TotalQuantity)
	for _, size := range SizeLabels {
		assert.Equal(t, 10, inv.Sizes[size])
	}
}
