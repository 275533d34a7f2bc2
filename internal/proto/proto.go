package proto

// RESP2 type bytes.
const (
	RespStatus = '+' // +<string>\r\n
	RespError  = '-' // -<string>\r\n
	RespInt    = ':' // :<number>\r\n
	RespString = '$' // $<length>\r\n<bytes>\r\n
	RespArray  = '*' // *<len>\r\n... (same as resp2)
)

const defaultBufSize = 4096

const (
	// MaxBulkLen is the largest bulk string the reader accepts (512mb).
	MaxBulkLen = 512 * 1024 * 1024
	// MaxArrayLen is the largest number of elements accepted in one array.
	MaxArrayLen = 1024 * 1024
)
