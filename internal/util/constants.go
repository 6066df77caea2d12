package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// 上传文件相关常量
const (
	MimeImage = "image/"
	MimePDF   = "application/pdf"

	MaxImageSize = 5 << 20
	MaxPDFSize   = 20 << 20
)

var (
	AllowedImageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}
)

// 上下文中的键
const (
	ContextUserKey   = "user"
	ContextConfigKey = "config"
)
