package file

import (
	"context"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// selfieFolder keeps verification selfies apart from other uploads in the
// Cloudinary media library.
const selfieFolder = "verification-selfies"

// Uploader stores a captured image and returns a stable URL reference.
// The workflow treats the reference as opaque.
type Uploader interface {
	UploadSelfie(ctx context.Context, fileName string) (string, error)
}

type FileUploader struct {
	cloudName string
	apiKey    string
	apiSecret string
}

func New(cloudName, apiKey, apiSecret string) *FileUploader {
	return &FileUploader{
		cloudName: cloudName,
		apiKey:    apiKey,
		apiSecret: apiSecret,
	}
}

func (f *FileUploader) UploadSelfie(ctx context.Context, fileName string) (string, error) {
	cld, err := cloudinary.NewFromParams(f.cloudName, f.apiKey, f.apiSecret)
	if err != nil {
		return "", err
	}

	uploadResult, err := cld.Upload.Upload(ctx, fileName, uploader.UploadParams{
		Folder: selfieFolder,
	})
	if err != nil {
		return "", err
	}

	return uploadResult.SecureURL, nil
}
