package assessment

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePhotos_Valid(t *testing.T) {
	v := newTestValidator(nil)
	parent := storedAssessment(t, StatusInProgress)

	png := encodePNG(t, 320, 240)
	jpg := encodeJPEG(t, 400, 300)
	res, photos, err := v.ValidatePhotos(parent, &PhotoUpload{
		Files: []PhotoFile{
			photoFile("front.PNG", "image/png", png),
			photoFile("detail.jpeg", "image/jpeg; charset=binary", jpg),
		},
		PhotoTypes:   []PhotoType{PhotoOverview, PhotoDetail},
		Descriptions: []string{"Front elevation", "Crack near gutter"},
	})
	require.NoError(t, err)
	assert.True(t, res.Valid(), res.Violations)
	require.Len(t, photos, 2)

	assert.Equal(t, "image/png", photos[0].ContentType)
	assert.Equal(t, 320, photos[0].Width)
	assert.Equal(t, 240, photos[0].Height)
	assert.Equal(t, PhotoOverview, photos[0].PhotoType)
	assert.Equal(t, "Front elevation", photos[0].Description)
	assert.Equal(t, int64(len(png)), photos[0].Size)

	assert.Equal(t, "image/jpeg", photos[1].ContentType)
	assert.Equal(t, PhotoDetail, photos[1].PhotoType)
}

func TestValidatePhotos_DefaultsToGeneral(t *testing.T) {
	v := newTestValidator(nil)
	res, photos, err := v.ValidatePhotos(storedAssessment(t, StatusDraft), &PhotoUpload{
		Files: []PhotoFile{photoFile("a.png", "", encodePNG(t, 200, 200))},
	})
	require.NoError(t, err)
	assert.True(t, res.Valid(), res.Violations)
	assert.Equal(t, PhotoGeneral, photos[0].PhotoType)
}

func TestValidatePhotos_FileIntegrity(t *testing.T) {
	png := encodePNG(t, 300, 300)
	jpg := encodeJPEG(t, 300, 300)

	tests := []struct {
		name     string
		file     PhotoFile
		rule     string
		category Category
	}{
		{"script in jpeg comment", photoFile("site.jpg", "image/jpeg", withJPEGComment(jpg, "<SCRIPT>alert(1)</script>")), "script_content", CategoryFileIntegrity},
		{"php marker", photoFile("site.jpg", "image/jpeg", withJPEGComment(jpg, "<?php system($_GET['c']); ?>")), "script_content", CategoryFileIntegrity},
		{"declared type disagrees with extension", photoFile("site.png", "image/jpeg", png), "mime_mismatch", CategoryFileIntegrity},
		{"content disagrees with extension", photoFile("site.jpg", "image/jpeg", png), "content_mismatch", CategoryFileIntegrity},
		{"extension not allowed", photoFile("site.gif", "image/gif", png), "extension_not_allowed", CategoryFileIntegrity},
		{"not an image", photoFile("notes.png", "image/png", []byte("just some text")), "not_an_image", CategoryFileIntegrity},
		{"too small", photoFile("thumb.png", "image/png", encodePNG(t, 100, 100)), "dimensions", CategoryFormat},
	}

	v := newTestValidator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _, err := v.ValidatePhotos(storedAssessment(t, StatusInProgress), &PhotoUpload{Files: []PhotoFile{tt.file}})
			require.NoError(t, err)
			require.True(t, res.Has("photos.0", tt.rule), res.Violations)
			for _, viol := range res.Violations {
				if viol.Rule == tt.rule {
					assert.Equal(t, tt.category, viol.Category)
				}
			}
		})
	}
}

func TestValidatePhotos_ScriptContentStillDecodes(t *testing.T) {
	v := newTestValidator(nil)
	data := withJPEGComment(encodeJPEG(t, 300, 300), "javascript:alert(1)")

	res, photos, err := v.ValidatePhotos(storedAssessment(t, StatusInProgress), &PhotoUpload{
		Files: []PhotoFile{photoFile("x.jpg", "image/jpeg", data)},
	})
	require.NoError(t, err)
	assert.True(t, res.Has("photos.0", "script_content"))
	assert.False(t, res.Has("photos.0", "not_an_image"))
	assert.Equal(t, 300, photos[0].Width)
}

func TestValidatePhotos_FileTooLarge(t *testing.T) {
	config := DefaultConfig()
	config.MaxFileSize = 512
	v := NewValidator(config, nil)

	data := encodePNG(t, 800, 800)
	require.Greater(t, len(data), 512)

	res, _, err := v.ValidatePhotos(storedAssessment(t, StatusInProgress), &PhotoUpload{
		Files: []PhotoFile{photoFile("big.png", "image/png", data)},
	})
	require.NoError(t, err)
	assert.True(t, res.Has("photos.0", "file_too_large"))

	// a lying size header is caught once the content is read
	lying := photoFile("big.png", "image/png", data)
	lying.Size = 10
	res, _, err = v.ValidatePhotos(storedAssessment(t, StatusInProgress), &PhotoUpload{Files: []PhotoFile{lying}})
	require.NoError(t, err)
	assert.True(t, res.Has("photos.0", "file_too_large"))
}

func TestValidatePhotos_Counts(t *testing.T) {
	v := newTestValidator(nil)
	png := encodePNG(t, 200, 200)
	files := func(n int) []PhotoFile {
		out := make([]PhotoFile, n)
		for i := range out {
			out[i] = photoFile("p.png", "image/png", png)
		}
		return out
	}

	res, _, err := v.ValidatePhotos(storedAssessment(t, StatusInProgress), &PhotoUpload{})
	require.NoError(t, err)
	assert.True(t, res.Has("photos", "required"))

	res, _, err = v.ValidatePhotos(storedAssessment(t, StatusInProgress), &PhotoUpload{Files: files(21)})
	require.NoError(t, err)
	assert.True(t, res.Has("photos", "too_many_files"))

	full := storedAssessment(t, StatusInProgress)
	full.Photos = make([]Photo, 99)
	res, _, err = v.ValidatePhotos(full, &PhotoUpload{Files: files(2)})
	require.NoError(t, err)
	assert.True(t, res.Has("photos", "photo_limit"))

	res, _, err = v.ValidatePhotos(full, &PhotoUpload{Files: files(1)})
	require.NoError(t, err)
	assert.True(t, res.Valid(), res.Violations)
}

func TestValidatePhotos_ParallelArrays(t *testing.T) {
	v := newTestValidator(nil)
	png := encodePNG(t, 200, 200)

	res, _, err := v.ValidatePhotos(storedAssessment(t, StatusInProgress), &PhotoUpload{
		Files:      []PhotoFile{photoFile("a.png", "image/png", png), photoFile("b.png", "image/png", png)},
		PhotoTypes: []PhotoType{PhotoDamage},
	})
	require.NoError(t, err)
	assert.True(t, res.Has("photo_types", "size_mismatch"))

	res, _, err = v.ValidatePhotos(storedAssessment(t, StatusInProgress), &PhotoUpload{
		Files:      []PhotoFile{photoFile("a.png", "image/png", png)},
		PhotoTypes: []PhotoType{"selfie"},
	})
	require.NoError(t, err)
	assert.True(t, res.Has("photo_types.0", "in_invalid"))
}

func TestValidatePhotos_Storage(t *testing.T) {
	v := newTestValidator(nil)
	png := encodePNG(t, 200, 200)
	upload := &PhotoUpload{Files: []PhotoFile{photoFile("a.png", "image/png", png)}}

	over := storedAssessment(t, StatusInProgress)
	over.Photos = []Photo{{Size: 500 << 20}}
	res, _, err := v.ValidatePhotos(over, upload)
	require.NoError(t, err)
	assert.True(t, res.Has("photos", "storage_quota"))
	assert.Contains(t, res.Fields()["photos"][0], "500.0MB")

	near := storedAssessment(t, StatusInProgress)
	near.Photos = []Photo{{Size: 460 << 20}}
	res, _, err = v.ValidatePhotos(near, upload)
	require.NoError(t, err)
	assert.True(t, res.Has("photos", "storage_near_quota"))
	assert.False(t, res.Has("photos", "storage_quota"))

	roomy := storedAssessment(t, StatusInProgress)
	roomy.Photos = []Photo{{Size: 100 << 20}}
	res, _, err = v.ValidatePhotos(roomy, upload)
	require.NoError(t, err)
	assert.True(t, res.Valid(), res.Violations)
}

func TestValidatePhotos_CancelledParent(t *testing.T) {
	v := newTestValidator(nil)
	res, _, err := v.ValidatePhotos(storedAssessment(t, StatusCancelled), &PhotoUpload{
		Files: []PhotoFile{photoFile("a.png", "image/png", encodePNG(t, 200, 200))},
	})
	require.NoError(t, err)
	assert.True(t, res.Has("assessment", "assessment_cancelled"))
}

func TestValidatePhotos_OpenError(t *testing.T) {
	v := newTestValidator(nil)
	broken := PhotoFile{
		Filename: "a.png",
		Size:     10,
		Open:     func() (io.ReadCloser, error) { return nil, errors.New("disk gone") },
	}
	_, _, err := v.ValidatePhotos(storedAssessment(t, StatusInProgress), &PhotoUpload{Files: []PhotoFile{broken}})
	assert.ErrorContains(t, err, "disk gone")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512B", formatBytes(512))
	assert.Equal(t, "1.5KB", formatBytes(1536))
	assert.Equal(t, "10.0MB", formatBytes(10<<20))
}
