package assist

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/regcheck/pkg/assist/mocks"
)

func TestTesseract_ReadText(t *testing.T) {
	var imgPath string
	runner := &mocks.CommandRunnerMock{
		RunFunc: func(_ context.Context, name string, args ...string) (io.Reader, func() error, error) {
			require.Len(t, args, 2)
			imgPath = args[0]
			data, err := os.ReadFile(imgPath)
			require.NoError(t, err)
			assert.Equal(t, "png-bytes", string(data))
			return strings.NewReader("Registration failed  \n\n\n  Seats are full\n\f"), func() error { return nil }, nil
		},
	}
	tr := &Tesseract{Runner: runner}

	text, err := tr.ReadText(context.Background(), []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "Registration failed\n  Seats are full", text)
	assert.Equal(t, "tesseract", runner.RunCalls()[0].Name)
	assert.Equal(t, "stdout", runner.RunCalls()[0].Args[1])
	assert.NoFileExists(t, imgPath, "temp image removed")
}

func TestTesseract_ReadText_Errors(t *testing.T) {
	_, err := (&Tesseract{}).ReadText(context.Background(), nil)
	require.ErrorContains(t, err, "empty image")

	tr := &Tesseract{Command: "ocr", Runner: stubRunner("Error opening data file", errors.New("exit status 1"))}
	_, err = tr.ReadText(context.Background(), []byte("x"))
	require.ErrorContains(t, err, "ocr: exit status 1, output: Error opening data file")
}
