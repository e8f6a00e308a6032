package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/casaflora/tienda-core/internal/config"
	"github.com/casaflora/tienda-core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrDisabled is returned when backups are switched off in the settings.
var ErrDisabled = errors.New("backup: disabled in settings")

// SettingsFunc resolves the current store settings.
type SettingsFunc func() (*config.StoreConfig, error)

// Service snapshots the subscriber file into timestamped zip archives and
// optionally pushes them to S3.
type Service struct {
	subscribersPath string
	backupDir       string
	settings        SettingsFunc
	logger          *zap.Logger
}

func NewService(subscribersPath, backupDir string, settings SettingsFunc, logger *zap.Logger) *Service {
	return &Service{
		subscribersPath: subscribersPath,
		backupDir:       backupDir,
		settings:        settings,
		logger:          logger,
	}
}

// Item describes one stored backup archive.
type Item struct {
	Filename string `json:"filename"`
	Size     string `json:"size"`
	S3URL    string `json:"s3Url,omitempty"`
}

// Snapshot writes a zip archive of the subscriber file and, when S3 is
// configured, uploads it. The local archive is kept either way.
func (s *Service) Snapshot(ctx context.Context) (*Item, error) {
	cfg, err := s.settings()
	if err != nil {
		return nil, err
	}
	if !cfg.Backup.Enable {
		return nil, ErrDisabled
	}

	data, err := os.ReadFile(s.subscribersPath)
	if err != nil {
		if os.IsNotExist(err) {
			data = []byte("[]")
		} else {
			return nil, err
		}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zw.Create("subscribers.json")
	if err != nil {
		return nil, err
	}
	if _, err := entry.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return nil, err
	}
	filename := fmt.Sprintf("backup-%s.zip", time.Now().Format("2006-01-02T15-04-05"))
	path := filepath.Join(s.backupDir, filename)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return nil, err
	}

	item := &Item{Filename: filename, Size: formatSize(int64(buf.Len()))}

	if cfg.S3.Bucket != "" {
		uploader, err := newS3Uploader(cfg.S3)
		if err != nil {
			s.logger.Warn("s3 uploader init failed", zap.Error(err))
			return item, nil
		}
		key := fmt.Sprintf("backups/%s/%s", time.Now().Format("2006/01"), filename)
		url, err := uploader.Upload(ctx, key, buf.Bytes(), "application/zip")
		if err != nil {
			s.logger.Warn("s3 backup upload failed", zap.String("key", key), zap.Error(err))
			return item, nil
		}
		item.S3URL = url
	}
	return item, nil
}

// List returns the stored archives, newest first.
func (s *Service) List() []Item {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return []Item{}
	}
	items := []Item{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, Item{Filename: e.Name(), Size: formatSize(info.Size())})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Filename > items[j].Filename })
	return items
}

func formatSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/admin/backup", authMW)
	g.GET("", h.list)
	g.POST("", h.create)
}

func (h *Handler) list(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"backups": h.svc.List()})
}

func (h *Handler) create(c *gin.Context) {
	item, err := h.svc.Snapshot(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrDisabled) {
			response.BadRequest(c, "Las copias de seguridad están desactivadas")
			return
		}
		response.InternalError(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "backup": item})
}
