package assessment

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for DecodeConfig
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	_ "golang.org/x/image/webp"
)

// allowedPhotoTypes maps accepted extensions to their MIME type
var allowedPhotoTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// scriptMarkers are rejected anywhere in the sniffed prefix of a file
var scriptMarkers = [][]byte{
	[]byte("<?php"),
	[]byte("<script"),
	[]byte("javascript:"),
}

// InspectedPhoto is an accepted file with the metadata read from its content
type InspectedPhoto struct {
	File        PhotoFile
	ContentType string
	Size        int64
	Width       int
	Height      int
	PhotoType   PhotoType
	Description string
	Location    string
}

// ValidatePhotos checks an upload batch against the parent assessment's photo
// count and storage limits and inspects every file. The returned photos are
// only meaningful when the result is valid. An error is returned only when a
// file cannot be read.
func (v *Validator) ValidatePhotos(parent *Assessment, up *PhotoUpload) (*Result, []InspectedPhoto, error) {
	result := &Result{}
	c := v.config
	n := len(up.Files)

	if parent.Status == StatusCancelled {
		result.addError("assessment", "assessment_cancelled", CategoryBusinessRule,
			"photos cannot be added to a cancelled assessment")
	}

	switch {
	case n == 0:
		result.addError("photos", "required", CategoryFormat, "at least one photo is required")
	case n > c.PhotosPerRequest:
		result.addError("photos", "too_many_files", CategoryFormat,
			"at most %d photos may be uploaded at once, got %d", c.PhotosPerRequest, n)
	}
	if existing := len(parent.Photos); existing+n > c.MaxPhotos {
		result.addError("photos", "photo_limit", CategoryBusinessRule,
			"assessment already has %d photos; the limit is %d", existing, c.MaxPhotos)
	}

	// parallel arrays must line up with the files when supplied
	for _, arr := range []struct {
		field string
		len   int
	}{
		{"photo_types", len(up.PhotoTypes)},
		{"descriptions", len(up.Descriptions)},
		{"location_descriptions", len(up.LocationDescriptions)},
	} {
		if arr.len > 0 && arr.len != n {
			result.addError(arr.field, "size_mismatch", CategoryCrossField,
				"%s has %d entries for %d photos", arr.field, arr.len, n)
		}
	}
	err := validation.Validate(up.PhotoTypes, validation.Each(validation.In(photoTypeValues()...)))
	collectOzzoErrors(err, "photo_types.", CategoryFormat, result)
	err = validation.Validate(up.Descriptions, validation.Each(validation.Length(0, maxNameLength)))
	collectOzzoErrors(err, "descriptions.", CategoryFormat, result)
	err = validation.Validate(up.LocationDescriptions, validation.Each(validation.Length(0, maxNameLength)))
	collectOzzoErrors(err, "location_descriptions.", CategoryFormat, result)

	inspected := make([]InspectedPhoto, 0, n)
	var incoming int64
	for i, f := range up.Files {
		field := fmt.Sprintf("photos.%d", i)
		photo, err := v.inspectPhoto(field, f, result)
		if err != nil {
			return nil, nil, err
		}
		incoming += photo.Size
		photo.PhotoType = PhotoGeneral
		if i < len(up.PhotoTypes) {
			photo.PhotoType = up.PhotoTypes[i]
		}
		if i < len(up.Descriptions) {
			photo.Description = up.Descriptions[i]
		}
		if i < len(up.LocationDescriptions) {
			photo.Location = up.LocationDescriptions[i]
		}
		inspected = append(inspected, photo)
	}

	used := parent.PhotoStorage() + incoming
	switch {
	case used > c.MaxStorage:
		result.addError("photos", "storage_quota", CategoryBusinessRule,
			"upload would use %s of the %s photo storage limit", formatBytes(used), formatBytes(c.MaxStorage))
	case float64(used) >= float64(c.MaxStorage)*c.StorageWarnRatio:
		result.addError("photos", "storage_near_quota", CategoryBusinessRule,
			"upload would use %s, over %.0f%% of the %s photo storage limit",
			formatBytes(used), c.StorageWarnRatio*100, formatBytes(c.MaxStorage))
	}

	return result, inspected, nil
}

// inspectPhoto checks one file's size, name, declared type, content and
// dimensions, recording violations on result
func (v *Validator) inspectPhoto(field string, f PhotoFile, result *Result) (InspectedPhoto, error) {
	c := v.config
	photo := InspectedPhoto{File: f, Size: f.Size}

	ext := strings.ToLower(filepath.Ext(f.Filename))
	expected, ok := allowedPhotoTypes[ext]
	if !ok {
		result.addError(field, "extension_not_allowed", CategoryFileIntegrity,
			"%s: only jpg, jpeg, png and webp files are accepted", f.Filename)
	}
	if declared := baseMediaType(f.ContentType); ok && declared != "" && declared != expected {
		result.addError(field, "mime_mismatch", CategoryFileIntegrity,
			"%s: declared type %s does not match extension %s", f.Filename, declared, ext)
	}
	if f.Size > c.MaxFileSize {
		result.addError(field, "file_too_large", CategoryFormat,
			"%s: file is %s; the limit is %s", f.Filename, formatBytes(f.Size), formatBytes(c.MaxFileSize))
		return photo, nil
	}

	rc, err := f.Open()
	if err != nil {
		return photo, fmt.Errorf("failed to open %s: %w", f.Filename, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, c.MaxFileSize+1))
	if err != nil {
		return photo, fmt.Errorf("failed to read %s: %w", f.Filename, err)
	}
	photo.Size = int64(len(data))
	if photo.Size > c.MaxFileSize {
		result.addError(field, "file_too_large", CategoryFormat,
			"%s: file exceeds %s", f.Filename, formatBytes(c.MaxFileSize))
		return photo, nil
	}

	prefix := data
	if len(prefix) > c.SniffBytes {
		prefix = prefix[:c.SniffBytes]
	}
	lowered := bytes.ToLower(prefix)
	for _, marker := range scriptMarkers {
		if bytes.Contains(lowered, marker) {
			result.addError(field, "script_content", CategoryFileIntegrity,
				"%s: file contains embedded script content", f.Filename)
			break
		}
	}

	photo.ContentType = http.DetectContentType(data)
	if ok && photo.ContentType != expected {
		result.addError(field, "content_mismatch", CategoryFileIntegrity,
			"%s: content is %s, not %s", f.Filename, photo.ContentType, expected)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		result.addError(field, "not_an_image", CategoryFileIntegrity,
			"%s: file is not a readable image", f.Filename)
		return photo, nil
	}
	photo.Width, photo.Height = cfg.Width, cfg.Height
	if cfg.Width < c.MinDimension || cfg.Height < c.MinDimension ||
		cfg.Width > c.MaxDimension || cfg.Height > c.MaxDimension {
		result.addError(field, "dimensions", CategoryFormat,
			"%s: image is %dx%d; allowed %dx%d to %dx%d", f.Filename, cfg.Width, cfg.Height,
			c.MinDimension, c.MinDimension, c.MaxDimension, c.MaxDimension)
	}
	return photo, nil
}

func baseMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(contentType)
	}
	return mediaType
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%cB", float64(n)/float64(div), "KMGT"[exp])
}
