package domain

// EncryptedData is the at-rest form of an encrypted column value.
// All fields are hex. An all-empty value encodes the empty plaintext.
type EncryptedData struct {
	Encrypted string `json:"encrypted"`
	IV        string `json:"iv"`
	Tag       string `json:"tag"`
}

// IsEmpty reports whether d encodes the empty plaintext.
func (d EncryptedData) IsEmpty() bool {
	return d.Encrypted == "" && d.IV == "" && d.Tag == ""
}
