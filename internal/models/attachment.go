package models

// AttachmentsCollection is the collection name file records are created in.
const AttachmentsCollection = "attachments"

// Attachment is a stored file record created by the file manager.
type Attachment struct {
	BaseModel
	Title    string `gorm:"index;size:255" json:"title"`
	Filename string `gorm:"size:255" json:"filename"`
	Extname  string `gorm:"size:32" json:"extname"`
	Size     int64  `json:"size"`
	Mimetype string `gorm:"size:128" json:"mimetype"`
	// Path is the storage key relative to the storage root or bucket.
	Path        string `gorm:"size:512" json:"path"`
	URL         string `gorm:"size:1024" json:"url"`
	StorageType string `gorm:"size:32" json:"storageType"`
}

// TableName pins the table to the collection name.
func (Attachment) TableName() string {
	return AttachmentsCollection
}
