package pdftext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractRejectsGarbage(t *testing.T) {
	_, err := Extract([]byte("this is not a pdf"))
	assert.Error(t, err)

	_, err = Extract(nil)
	assert.Error(t, err)
}
