package natural

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLessNumericRuns(t *testing.T) {
	assert.True(t, Less("page2.jpg", "page10.jpg"))
	assert.False(t, Less("page10.jpg", "page2.jpg"))
	assert.False(t, Less("page2.jpg", "page2.jpg"))
}

func TestLessMultipleRuns(t *testing.T) {
	assert.True(t, Less("v1/page9.jpg", "v1/page10.jpg"))
	assert.True(t, Less("v2/page1.jpg", "v10/page1.jpg"))
	assert.False(t, Less("v10/page1.jpg", "v2/page1.jpg"))
}

func TestSortOrdersAChapterOfPages(t *testing.T) {
	names := []string{"page10.jpg", "page1.jpg", "page2.jpg", "cover.jpg"}
	Sort(names)
	assert.Equal(t, []string{"cover.jpg", "page1.jpg", "page2.jpg", "page10.jpg"}, names)
}
