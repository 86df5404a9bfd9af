// Package web embeds the browser UI served alongside the API.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	indexFileName   = "index.html"
	assetsRoutePath = "/assets"
)

//go:embed static
var staticFiles embed.FS

// Assets returns the embedded static file tree rooted at the asset directory.
func Assets() fs.FS {
	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return assets
}

// Register mounts the index page at / and the static files under /assets.
func Register(router gin.IRoutes) error {
	assets := Assets()
	indexPage, err := fs.ReadFile(assets, indexFileName)
	if err != nil {
		return fmt.Errorf("read embedded index: %w", err)
	}
	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexPage)
	})
	router.StaticFS(assetsRoutePath, http.FS(assets))
	return nil
}
