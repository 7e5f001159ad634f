package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestDecodeAttachmentsNativeArray(t *testing.T) {
	raw := []byte(`[{"id":"a1","kind":"image","url":"https://cdn/img.png","name":"img.png","size":1024}]`)
	got := DecodeAttachments(raw)
	want := []Attachment{{ID: "a1", Kind: AttachmentImage, URL: "https://cdn/img.png", Name: "img.png", Size: 1024}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("attachments mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeAttachmentsTextBlob(t *testing.T) {
	// Historic rows store the array as an escaped JSON string.
	raw := []byte(`"[{\"id\":\"a1\",\"kind\":\"pdf\",\"url\":\"https://cdn/doc.pdf\"}]"`)
	got := DecodeAttachments(raw)
	want := []Attachment{{ID: "a1", Kind: AttachmentPDF, URL: "https://cdn/doc.pdf"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("attachments mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeAttachmentsBareURL(t *testing.T) {
	got := DecodeAttachments([]byte(`"https://example.com/spec"`))
	want := []Attachment{{Kind: AttachmentLink, URL: "https://example.com/spec"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("attachments mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeAttachmentsEmptyForms(t *testing.T) {
	assert.Nil(t, DecodeAttachments(nil))
	assert.Nil(t, DecodeAttachments([]byte("")))
	assert.Nil(t, DecodeAttachments([]byte("null")))
	assert.Nil(t, DecodeAttachments([]byte(`""`)))
	assert.Nil(t, DecodeAttachments([]byte(`not json at all`)))
}

func TestEncodeAttachments(t *testing.T) {
	assert.Equal(t, []byte("null"), EncodeAttachments(nil))
	assert.Equal(t, []byte("null"), EncodeAttachments([]Attachment{}))

	data := EncodeAttachments([]Attachment{{Kind: AttachmentLink, URL: "https://x"}})
	assert.Contains(t, string(data), `"url":"https://x"`)
}

func TestTaskTypeIsValid(t *testing.T) {
	for _, tt := range []TaskType{TypeCall, TypeContent, TypeDev, TypeOther} {
		assert.True(t, tt.IsValid(), string(tt))
	}
	assert.False(t, TaskType("meeting").IsValid())
	assert.False(t, TaskType("").IsValid())
}

func TestValidateStruct(t *testing.T) {
	assert.NoError(t, ValidateStruct(Task{Title: "valid", Type: TypeDev}))
	assert.Error(t, ValidateStruct(Task{Title: ""}), "title is required")
	assert.Error(t, ValidateStruct(Task{Title: "x", Percentage: -1}))
	assert.Error(t, ValidateStruct(Task{Title: "x", Type: "meeting"}))
	assert.NoError(t, ValidateStruct(Folder{Name: "project"}))
	assert.Error(t, ValidateStruct(Folder{Name: ""}))
	assert.NoError(t, ValidateStruct(Problem{Title: "blocked on review"}))
	assert.Error(t, ValidateStruct(Problem{Title: ""}))
}
