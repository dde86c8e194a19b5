package model

import "time"

// OrdenArchivo is the metadata row of a file attached to an order.
// The physical file lives under the upload directory; deleting the row must
// also delete the file (file first, then row).
type OrdenArchivo struct {
	ID          uint   `gorm:"primaryKey"`
	OrdenID     uint   `gorm:"column:order_id;index;not null"`
	Nombre      string `gorm:"column:file_name;not null"`
	Ruta        string `gorm:"column:file_path;not null"`
	Extension   string `gorm:"column:file_type;type:varchar(20)"`
	MimeType    string `gorm:"column:mime_type;type:varchar(100)"`
	TamanoBytes int64  `gorm:"column:size_bytes;not null;default:0"`
	CreatedAt   time.Time
}

func (OrdenArchivo) TableName() string { return "order_files" }
