package internal

import (
	"bitwise74/file-api/config"
	"bitwise74/file-api/internal/service"
	"bitwise74/file-api/internal/token"

	"gorm.io/gorm"
)

type Deps struct {
	DB     *gorm.DB
	Config *config.Config
	Files  *service.Files
	Tokens *token.Service
}
