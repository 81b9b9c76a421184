package explain

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"

	"github.com/born-ml/gradcam/internal/errs"
)

// JPEGQuality is used for .jpg and .jpeg outputs.
const JPEGQuality = 95

// OutputName returns "{group}_{basename}".
func OutputName(group, imagePath string) string {
	return group + "_" + filepath.Base(imagePath)
}

// ResolveGroup returns the classification group for an image.
//
// An explicit group wins. Otherwise the name of the image's parent
// directory is used ("images/human/x.png" gives "human"), and an image with
// no parent directory falls back to defaultGroup. Groups that could escape
// the output directory are Input errors.
func ResolveGroup(explicit, imagePath, defaultGroup string) (string, error) {
	group := explicit
	if group == "" {
		group = filepath.Base(filepath.Dir(filepath.Clean(imagePath)))
		if group == "." || group == string(filepath.Separator) || group == "" {
			group = defaultGroup
		}
	}
	if err := validateGroup(group); err != nil {
		return "", errs.E(errs.Input, "explain.ResolveGroup", err)
	}
	return group, nil
}

func validateGroup(group string) error {
	switch {
	case group == "":
		return fmt.Errorf("empty group")
	case group == "." || strings.Contains(group, ".."):
		return fmt.Errorf("group %q must not contain relative path elements", group)
	case strings.ContainsAny(group, `/\`):
		return fmt.Errorf("group %q must not contain path separators", group)
	}
	return nil
}

// encoderFor picks the encoder from the file extension; PNG by default.
func encoderFor(name string) func(io.Writer, image.Image) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
		}
	case ".gif":
		return func(w io.Writer, img image.Image) error {
			return gif.Encode(w, img, nil)
		}
	case ".bmp":
		return bmp.Encode
	default:
		return png.Encode
	}
}

// writeImage encodes img to dir/name atomically: the image is written to a
// temporary file in dir, synced and renamed over name. On every error path
// the temporary file is removed and name is left untouched.
func writeImage(dir, name string, img image.Image) (path string, err error) {
	const op = "explain.writeImage"

	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // output images are meant to be readable
		return "", errs.Errorf(errs.Storage, op, "create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", errs.Errorf(errs.Storage, op, "create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = encoderFor(name)(tmp, img); err != nil {
		return "", errs.Errorf(errs.Storage, op, "encode %s: %w", name, err)
	}
	if err = tmp.Chmod(0o644); err != nil { //nolint:gosec // overlays are served to other processes
		return "", errs.Errorf(errs.Storage, op, "chmod %s: %w", name, err)
	}
	if err = tmp.Sync(); err != nil {
		return "", errs.Errorf(errs.Storage, op, "sync %s: %w", name, err)
	}
	if err = tmp.Close(); err != nil {
		return "", errs.Errorf(errs.Storage, op, "close %s: %w", name, err)
	}

	path = filepath.Join(dir, name)
	if err = os.Rename(tmp.Name(), path); err != nil {
		return "", errs.Errorf(errs.Storage, op, "rename to %s: %w", path, err)
	}
	return path, nil
}
