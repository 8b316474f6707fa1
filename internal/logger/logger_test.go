package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_NewTo_ProdIsJSON(t *testing.T) {
	var buf bytes.Buffer
	NewTo(&buf, "prod").Info("loan issued", "loan_id", "01HX")
	assert.Contains(t, buf.String(), `"msg":"loan issued"`)
	assert.Contains(t, buf.String(), `"loan_id":"01HX"`)

	buf.Reset()
	NewTo(&buf, "prod").Debug("hidden")
	assert.Empty(t, buf.String())
}

func Test_NewTo_DevIsText(t *testing.T) {
	var buf bytes.Buffer
	NewTo(&buf, "dev").Debug("retry", "op", "issue")
	assert.Contains(t, buf.String(), "msg=retry")
	assert.Contains(t, buf.String(), "op=issue")
}
