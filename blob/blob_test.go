package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/custom", ContentType([]byte("x"), "application/custom"))
	assert.Equal(t, "application/pdf", ContentType([]byte("%PDF-1.4\n%âãÏÓ\n"), ""))
	assert.Contains(t, ContentType([]byte("plain words"), ""), "text/plain")
}
