// Package stubserver is an in-memory stand-in for the segmentation backend.
// It serves the same routes with the same response shapes, enqueues tasks
// without running any model, and lets callers decide when a task finishes.
package stubserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Adda-Baaj/frameseg/internal/logger"
	"github.com/Adda-Baaj/frameseg/pkg/segclient"
)

// DefaultQueueCapacity matches the backend's task queue size.
const DefaultQueueCapacity = 5

// ErrUnknownTask is returned by Complete and Fail for ids never issued.
var ErrUnknownTask = errors.New("unknown task")

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff", ".tif"}

// Options configures a Server.
type Options struct {
	QueueCapacity int
	// AutoComplete marks every task done as soon as it is enqueued.
	AutoComplete bool
	Logger       logger.Logger
}

type task struct {
	kind   string
	status segclient.Status
	result json.RawMessage
	frames map[string]string
	// frameIdx lists the frames a segmentation task covers.
	frameIdx []int
}

// Server holds the task table and the gin router.
type Server struct {
	mu       sync.Mutex
	tasks    map[string]*task
	capacity int
	auto     bool
	log      logger.Logger
	engine   *gin.Engine
}

// New builds a Server with its routes registered.
func New(opts Options) *Server {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.Logger == nil {
		opts.Logger = logger.NopLogger{}
	}

	s := &Server{
		tasks:    make(map[string]*task),
		capacity: opts.QueueCapacity,
		auto:     opts.AutoComplete,
		log:      opts.Logger,
		engine:   gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.registerRoutes(s.engine)
	return s
}

// Handler exposes the router for http.Server or httptest.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST(segclient.PathScanFolder, s.scanFolder)
	router.GET(segclient.PathFrameImage, s.frameImage)
	router.POST(segclient.PathSegmentFrame, s.submitSegmentFrame)
	router.POST(segclient.PathSegmentFrames, s.submitSegmentFrames)
	router.POST(segclient.PathAnalyzeVideo, s.submitAnalyzeVideo)
	router.POST(segclient.PathAnalyzeImage, s.submitAnalyzeImage)
	router.GET(segclient.PathTaskStatus+":id", s.taskStatus)
}

func detail(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"detail": msg})
}

func (s *Server) scanFolder(c *gin.Context) {
	var req struct {
		FolderPath *string `json:"folder_path"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.FolderPath == nil {
		detail(c, http.StatusUnprocessableEntity, "folder_path is required")
		return
	}

	frames, err := scanFrames(*req.FolderPath)
	if err != nil {
		// A missing folder is answered with 404 on purpose; the real backend
		// folds it into a generic 500.
		if errors.Is(err, os.ErrNotExist) {
			detail(c, http.StatusNotFound, fmt.Sprintf("folder does not exist: %s", *req.FolderPath))
			return
		}
		detail(c, http.StatusInternalServerError, fmt.Sprintf("scan folder failed: %v", err))
		return
	}

	c.JSON(http.StatusOK, segclient.ScanResult{
		Success:    true,
		FolderPath: *req.FolderPath,
		FrameCount: len(frames),
		Frames:     frames,
	})
}

// scanFrames walks root for .jpg/.jpeg files, sorted by file name and indexed
// in that order.
func scanFrames(root string) ([]segclient.Frame, error) {
	walkRoot := root
	if walkRoot == "" {
		walkRoot = "."
	}
	if _, err := os.Stat(walkRoot); err != nil {
		return nil, err
	}

	frames := []segclient.Frame{}
	err := filepath.WalkDir(walkRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := filepath.Ext(d.Name())
		if ext != ".jpg" && ext != ".jpeg" {
			return nil
		}
		rel := path
		if root != "" {
			if r, err := filepath.Rel(root, path); err == nil {
				rel = r
			}
		}
		frames = append(frames, segclient.Frame{
			Filename:     d.Name(),
			FilePath:     path,
			RelativePath: rel,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(frames, func(i, j int) bool { return frames[i].Filename < frames[j].Filename })
	for i := range frames {
		frames[i].Index = i
	}
	return frames, nil
}

func (s *Server) frameImage(c *gin.Context) {
	folder, okFolder := c.GetQuery("folder_path")
	filename, okFile := c.GetQuery("filename")
	if !okFolder || !okFile {
		detail(c, http.StatusUnprocessableEntity, "folder_path and filename are required")
		return
	}
	if !filepath.IsAbs(folder) {
		detail(c, http.StatusBadRequest, "relative paths are not supported, use an absolute path")
		return
	}

	path := filepath.Join(folder, filename)
	if _, err := os.Stat(path); err != nil {
		detail(c, http.StatusNotFound, fmt.Sprintf("image file does not exist: %s", path))
		return
	}
	if !hasImageExtension(path) {
		detail(c, http.StatusBadRequest, "unsupported file format")
		return
	}

	c.Header("Content-Type", "image/jpeg")
	c.File(path)
}

func hasImageExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func (s *Server) submitSegmentFrame(c *gin.Context) {
	var req segclient.SegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.enqueue(c, "segment_frame", []int{req.FrameIdx})
}

func (s *Server) submitSegmentFrames(c *gin.Context) {
	var req segclient.SegmentBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.enqueue(c, "segment_frames", req.FrameIndices)
}

func (s *Server) submitAnalyzeVideo(c *gin.Context) {
	var req segclient.VideoAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.enqueue(c, "analyze_video", nil)
}

func (s *Server) submitAnalyzeImage(c *gin.Context) {
	var req segclient.ImageAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.enqueue(c, "analyze_image", nil)
}

func (s *Server) enqueue(c *gin.Context, kind string, frames []int) {
	s.mu.Lock()
	if s.pendingLocked() >= s.capacity {
		s.mu.Unlock()
		detail(c, http.StatusTooManyRequests, "Queue is full, try again later.")
		return
	}
	id := uuid.NewString()
	t := &task{kind: kind, status: segclient.StatusQueued, frames: map[string]string{}, frameIdx: frames}
	s.tasks[id] = t
	if s.auto {
		completeLocked(t, autoResult(frames))
	}
	s.mu.Unlock()

	s.log.InfoObj("stub task enqueued", "stub_task", map[string]any{
		"task_id": id,
		"kind":    kind,
	})
	c.JSON(http.StatusOK, segclient.TaskTicket{Status: segclient.StatusQueued, TaskID: id})
}

func (s *Server) pendingLocked() int {
	n := 0
	for _, t := range s.tasks {
		if !t.status.Terminal() {
			n++
		}
	}
	return n
}

func (s *Server) taskStatus(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	t, ok := s.tasks[id]
	var state segclient.TaskState
	if ok {
		state = segclient.TaskState{Status: t.status}
		if t.status.Terminal() {
			state.Result = t.result
			state.Frames = make(map[string]string, len(t.frames))
			for k, v := range t.frames {
				state.Frames[k] = v
			}
		} else {
			state.TaskID = id
		}
	}
	s.mu.Unlock()

	if !ok {
		detail(c, http.StatusNotFound, "Task ID not found")
		return
	}
	c.JSON(http.StatusOK, state)
}

// Start moves a queued task to processing.
func (s *Server) Start(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("start %q: %w", id, ErrUnknownTask)
	}
	if t.status == segclient.StatusQueued {
		t.status = segclient.StatusProcessing
	}
	return nil
}

// Complete marks a task done with the given result.
func (s *Server) Complete(id string, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("complete %q: %w", id, ErrUnknownTask)
	}
	completeLocked(t, raw)
	return nil
}

// Fail marks a task as failed with msg as its result.
func (s *Server) Fail(id, msg string) error {
	raw, _ := json.Marshal(msg)
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("fail %q: %w", id, ErrUnknownTask)
	}
	t.status = segclient.StatusError
	t.result = raw
	return nil
}

func completeLocked(t *task, result json.RawMessage) {
	t.status = segclient.StatusDone
	t.result = result
	for _, idx := range t.frameIdx {
		t.frames[strconv.Itoa(idx)] = string(segclient.StatusDone)
	}
}

// autoResult fakes the per-frame overlay map the backend returns.
func autoResult(frames []int) json.RawMessage {
	out := make(map[string]string, len(frames))
	for _, idx := range frames {
		out[strconv.Itoa(idx)] = ""
	}
	raw, _ := json.Marshal(out)
	return raw
}

// TaskIDs returns the ids of all tasks issued so far.
func (s *Server) TaskIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
