package intake

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccept(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		want        bool
	}{
		{"jpeg", "image/jpeg", true},
		{"png", "image/png", true},
		{"webp", "image/webp", true},
		{"bare prefix", "image/", true},
		{"pdf", "application/pdf", false},
		{"text", "text/plain", false},
		{"empty", "", false},
		{"uppercase is not image/", "IMAGE/PNG", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Accept(File{ContentType: tt.contentType}))
		})
	}
}

func TestPickAndSelect(t *testing.T) {
	pdf := File{Name: "doc.pdf", ContentType: "application/pdf"}
	car := File{Name: "car.jpg", ContentType: "image/jpeg"}
	other := File{Name: "other.png", ContentType: "image/png"}

	got, ok := Pick([]File{pdf, car, other})
	require.True(t, ok)
	assert.Equal(t, "car.jpg", got.Name)

	_, ok = Pick([]File{pdf})
	assert.False(t, ok)

	_, ok = Select([]File{pdf, car})
	assert.False(t, ok, "picker only looks at the first file")

	got, ok = Select([]File{other, car})
	require.True(t, ok)
	assert.Equal(t, "other.png", got.Name)

	_, ok = Select(nil)
	assert.False(t, ok)
}

func TestTarget(t *testing.T) {
	target := NewTarget()
	notes := File{Name: "a.txt", ContentType: "text/plain"}
	car := File{Name: "car.jpg", ContentType: "image/jpeg"}

	_, ok := target.Drop([]File{notes})
	assert.False(t, ok)

	f, ok := target.Drop([]File{notes, car})
	require.True(t, ok)
	assert.Equal(t, "car.jpg", f.Name)

	_, ok = target.Choose([]File{notes, car})
	assert.False(t, ok, "picker only considers the first file")

	target.SetDisabled(true)
	assert.True(t, target.Disabled())
	_, ok = target.Drop([]File{car})
	assert.False(t, ok)
	_, ok = target.Choose([]File{car})
	assert.False(t, ok)

	target.SetDisabled(false)
	f, ok = target.Choose([]File{car})
	require.True(t, ok)
	assert.Equal(t, "car.jpg", f.Name)
}

func TestFromMultipart(t *testing.T) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="car.png"`)
	h.Set("Content-Type", "image/png")
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte("pixels"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req, err := http.NewRequest(http.MethodPost, "/", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	f, err := FromMultipart(req.MultipartForm.File["file"][0])
	require.NoError(t, err)
	assert.Equal(t, "car.png", f.Name)
	assert.Equal(t, "image/png", f.ContentType)
	assert.Equal(t, []byte("pixels"), f.Data)
	assert.Equal(t, 6, f.Size())
}
