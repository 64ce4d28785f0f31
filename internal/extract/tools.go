package extract

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/rotisserie/eris"
)

// runPdfToText runs pdftotext -layout on the given PDF and returns stdout.
func runPdfToText(ctx context.Context, binPath, pdfPath string) (string, error) {
	if binPath == "" {
		binPath = "pdftotext"
	}
	cmd := exec.CommandContext(ctx, binPath, "-layout", pdfPath, "-")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "extract: pdftotext failed for %s: %s", pdfPath, stderr.String())
	}

	return stdout.String(), nil
}

// runTesseract recognizes text in an image, writing to stdout.
func runTesseract(ctx context.Context, binPath, imagePath string) (string, error) {
	if binPath == "" {
		binPath = "tesseract"
	}
	cmd := exec.CommandContext(ctx, binPath, imagePath, "stdout")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "extract: tesseract failed for %s: %s", imagePath, stderr.String())
	}

	return stdout.String(), nil
}
