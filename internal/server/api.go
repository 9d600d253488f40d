package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kanban/internal/board"
	"kanban/internal/validation"
)

type statusRequest struct {
	Name  *string `json:"name"`
	Order *int    `json:"order" binding:"omitempty,gte=0"`
}

type taskRequest struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	StatusID      *int64     `json:"status_id"`
	ClearStatus   bool       `json:"clear_status"`
	AssigneeIDs   *[]int64   `json:"assignee_ids"`
	Deadline      *time.Time `json:"deadline"`
	ClearDeadline bool       `json:"clear_deadline"`
}

type moveRequest struct {
	StatusID int64 `json:"status_id" binding:"required,gt=0"`
}

// respondServiceError writes the JSON error for a board/auth failure,
// including field messages for validation errors.
func (s *Server) respondServiceError(c *gin.Context, err error) {
	if fields, ok := formErrors(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return
	}
	s.respondError(c, errorStatus(err), err)
}

func (s *Server) handleMe(c *gin.Context) {
	who := mustIdentity(c)
	respondSuccess(c, http.StatusOK, gin.H{"id": who.UserID, "username": who.Username})
}

// handleListProjects returns the caller's projects.
func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := s.board.ListProjects(c.Request.Context(), mustIdentity(c))
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"projects": projects})
}

// handleCreateProject creates a project owned by the caller.
func (s *Server) handleCreateProject(c *gin.Context) {
	var req projectForm
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}
	project, err := s.board.CreateProject(c.Request.Context(), mustIdentity(c), req.Name)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	recordEvent("project_created")
	respondSuccess(c, http.StatusCreated, gin.H{"project": project})
}

// handleJoinProject joins by invite code.
func (s *Server) handleJoinProject(c *gin.Context) {
	var req joinCodeForm
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}
	project, res, err := s.board.JoinByCode(c.Request.Context(), mustIdentity(c), req.InviteCode)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	if res == board.Joined {
		recordEvent("member_joined")
	}
	respondSuccess(c, http.StatusOK, gin.H{"project": project, "result": res.String()})
}

// handleGetBoard returns a project with its columns, tasks and members.
func (s *Server) handleGetBoard(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	b, err := s.board.Board(c.Request.Context(), mustIdentity(c), id)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	members := make([]gin.H, 0, len(b.Members))
	for _, m := range b.Members {
		members = append(members, gin.H{"id": m.ID, "username": m.Username})
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"project":  b.Project,
		"statuses": b.Statuses,
		"tasks":    b.Tasks,
		"members":  members,
	})
}

// handleDeleteProject removes a project. Owner only.
func (s *Server) handleDeleteProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.board.DeleteProject(c.Request.Context(), mustIdentity(c), id); err != nil {
		s.respondServiceError(c, err)
		return
	}
	recordEvent("project_deleted")
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleAPIAddMember(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req addMemberForm
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}
	res, err := s.board.AddMemberByUsername(c.Request.Context(), mustIdentity(c), id, req.Username)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	status := http.StatusOK
	if res == board.Joined {
		recordEvent("member_added")
		status = http.StatusCreated
	}
	respondSuccess(c, status, gin.H{"result": res.String()})
}

func (s *Server) handleAPIRemoveMember(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}
	if err := s.board.RemoveMember(c.Request.Context(), mustIdentity(c), id, userID); err != nil {
		s.respondServiceError(c, err)
		return
	}
	recordEvent("member_removed")
	respondSuccess(c, http.StatusNoContent, nil)
}

func (s *Server) handleListStatuses(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	statuses, err := s.board.ListStatuses(c.Request.Context(), mustIdentity(c), id)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"statuses": statuses})
}

// handleCreateStatus adds a column at the requested order.
func (s *Server) handleCreateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}
	var name string
	if req.Name != nil {
		name = *req.Name
	}
	var order int
	if req.Order != nil {
		order = *req.Order
	}
	st, err := s.board.CreateStatus(c.Request.Context(), mustIdentity(c), id, name, order)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	recordEvent("status_created")
	respondSuccess(c, http.StatusCreated, gin.H{"status": st})
}

// handleUpdateStatus renames or moves a column.
func (s *Server) handleUpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}
	st, err := s.board.EditStatus(c.Request.Context(), mustIdentity(c), id, req.Name, req.Order)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": st})
}

func (s *Server) handleDeleteStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := s.board.DeleteStatus(c.Request.Context(), mustIdentity(c), id); err != nil {
		s.respondServiceError(c, err)
		return
	}
	recordEvent("status_deleted")
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleListTasks lists the caller's tasks, filtered by query parameters.
func (s *Server) handleListTasks(c *gin.Context) {
	var q struct {
		ProjectID  int64 `form:"project"`
		StatusID   int64 `form:"status"`
		AssigneeID int64 `form:"assignee"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	tasks, err := s.board.ListTasks(c.Request.Context(), mustIdentity(c), board.TaskFilter{
		ProjectID:  q.ProjectID,
		StatusID:   q.StatusID,
		AssigneeID: q.AssigneeID,
	})
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	task, err := s.board.Task(c.Request.Context(), mustIdentity(c), id)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleCreateTask inserts a new task into a project.
func (s *Server) handleCreateTask(c *gin.Context) {
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}

	in := board.TaskInput{
		Title:       getString(req.Title),
		Description: getString(req.Description),
		StatusID:    req.StatusID,
		Deadline:    req.Deadline,
	}
	if req.AssigneeIDs != nil {
		in.AssigneeIDs = *req.AssigneeIDs
	}
	task, err := s.board.CreateTask(c.Request.Context(), mustIdentity(c), projectID, in)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	recordEvent("task_created")
	respondSuccess(c, http.StatusCreated, gin.H{"task": task})
}

// handleUpdateTask applies a partial update.
func (s *Server) handleUpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}
	task, err := s.board.EditTask(c.Request.Context(), mustIdentity(c), id, board.TaskPatch{
		Title:         req.Title,
		Description:   req.Description,
		StatusID:      req.StatusID,
		ClearStatus:   req.ClearStatus,
		AssigneeIDs:   req.AssigneeIDs,
		Deadline:      req.Deadline,
		ClearDeadline: req.ClearDeadline,
	})
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

// handleDeleteTask removes a task completely.
func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := s.board.DeleteTask(c.Request.Context(), mustIdentity(c), id); err != nil {
		s.respondServiceError(c, err)
		return
	}
	recordEvent("task_deleted")
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleAPIMoveTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondBindError(c, err)
		return
	}
	task, err := s.board.MoveTask(c.Request.Context(), mustIdentity(c), id, req.StatusID)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	recordEvent("task_moved")
	respondSuccess(c, http.StatusOK, gin.H{"task": task})
}

func (s *Server) respondBindError(c *gin.Context, err error) {
	if fields, ok := validation.Messages(err); ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return
	}
	s.respondError(c, http.StatusBadRequest, errors.New("malformed request body"))
}

func getString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
