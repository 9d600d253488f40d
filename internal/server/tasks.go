package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"kanban/internal/board"
	"kanban/internal/models"
	"kanban/internal/validation"
)

type taskForm struct {
	Title         string  `form:"title" binding:"required,max=255"`
	Description   string  `form:"description"`
	Status        string  `form:"status"`
	AssignedUsers []int64 `form:"assigned_users"`
	Deadline      string  `form:"deadline"`
}

// bindTaskForm reads and checks the task form. fields is non-empty when the
// form must be shown again.
func bindTaskForm(c *gin.Context) (form taskForm, statusID *int64, deadline *time.Time, fields map[string]string) {
	fields = map[string]string{}
	if err := c.ShouldBind(&form); err != nil {
		if msgs, ok := validation.Messages(err); ok {
			for k, v := range msgs {
				fields[k] = v
			}
		} else {
			fields["assigned_users"] = "Enter a list of values."
		}
	}

	if raw := strings.TrimSpace(form.Status); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			fields["status"] = "Select a valid choice. That choice is not one of the available choices."
		} else {
			statusID = &id
		}
	}

	if raw := strings.TrimSpace(form.Deadline); raw != "" {
		d, err := parseDeadline(raw)
		if err != nil {
			fields["deadline"] = "Enter a valid date/time."
		} else {
			deadline = &d
		}
	}
	return form, statusID, deadline, fields
}

func parseDeadline(raw string) (time.Time, error) {
	for _, layout := range []string{deadlineLayout, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Parse(time.RFC3339, raw)
}

func taskFormFrom(t models.Task) taskForm {
	form := taskForm{
		Title:         t.Title,
		Description:   t.Description,
		AssignedUsers: t.AssigneeIDs,
	}
	if t.StatusID != nil {
		form.Status = strconv.FormatInt(*t.StatusID, 10)
	}
	if t.Deadline != nil {
		form.Deadline = t.Deadline.Local().Format(deadlineLayout)
	}
	return form
}

// renderTaskForm shows the task form with choices limited to the project's
// statuses and members.
func (s *Server) renderTaskForm(c *gin.Context, status int, b board.Board, task *models.Task, form taskForm, fields map[string]string) {
	action := "/tasks/create/" + strconv.FormatInt(b.Project.ID, 10)
	title := "New task"
	if task != nil {
		action = "/tasks/edit/" + strconv.FormatInt(task.ID, 10)
		title = "Edit task"
	}
	if fields == nil {
		fields = map[string]string{}
	}
	s.html(c, status, "task_form", gin.H{
		"title":    title,
		"action":   action,
		"project":  b.Project,
		"statuses": b.Statuses,
		"members":  b.Members,
		"task":     task,
		"form":     form,
		"errors":   fields,
	})
}

func (s *Server) handleTaskCreateForm(c *gin.Context) {
	projectID, ok := s.pageID(c, "projectId")
	if !ok {
		return
	}
	b, err := s.board.Board(c.Request.Context(), mustIdentity(c), projectID)
	if err != nil {
		s.pageError(c, err)
		return
	}
	s.renderTaskForm(c, http.StatusOK, b, nil, taskForm{}, nil)
}

// handleTaskCreate adds a task and returns to the board.
func (s *Server) handleTaskCreate(c *gin.Context) {
	projectID, ok := s.pageID(c, "projectId")
	if !ok {
		return
	}
	who := mustIdentity(c)
	b, err := s.board.Board(c.Request.Context(), who, projectID)
	if err != nil {
		s.pageError(c, err)
		return
	}

	form, statusID, deadline, fields := bindTaskForm(c)
	if len(fields) > 0 {
		s.renderTaskForm(c, http.StatusBadRequest, b, nil, form, fields)
		return
	}

	_, err = s.board.CreateTask(c.Request.Context(), who, projectID, board.TaskInput{
		Title:       form.Title,
		Description: form.Description,
		StatusID:    statusID,
		AssigneeIDs: form.AssignedUsers,
		Deadline:    deadline,
	})
	var verr *board.ValidationError
	if errors.As(err, &verr) {
		s.renderTaskForm(c, http.StatusBadRequest, b, nil, form, verr.Fields)
		return
	}
	if err != nil {
		s.pageError(c, err)
		return
	}
	recordEvent("task_created")
	c.Redirect(http.StatusFound, projectURL(projectID))
}

func (s *Server) handleTaskEditForm(c *gin.Context) {
	id, ok := s.pageID(c, "id")
	if !ok {
		return
	}
	who := mustIdentity(c)
	task, err := s.board.Task(c.Request.Context(), who, id)
	if err != nil {
		s.pageError(c, err)
		return
	}
	b, err := s.board.Board(c.Request.Context(), who, task.ProjectID)
	if err != nil {
		s.pageError(c, err)
		return
	}
	s.renderTaskForm(c, http.StatusOK, b, &task, taskFormFrom(task), nil)
}

// handleTaskEdit saves the whole form over the task.
func (s *Server) handleTaskEdit(c *gin.Context) {
	id, ok := s.pageID(c, "id")
	if !ok {
		return
	}
	who := mustIdentity(c)
	task, err := s.board.Task(c.Request.Context(), who, id)
	if err != nil {
		s.pageError(c, err)
		return
	}
	b, err := s.board.Board(c.Request.Context(), who, task.ProjectID)
	if err != nil {
		s.pageError(c, err)
		return
	}

	form, statusID, deadline, fields := bindTaskForm(c)
	if len(fields) > 0 {
		s.renderTaskForm(c, http.StatusBadRequest, b, &task, form, fields)
		return
	}

	assignees := form.AssignedUsers
	_, err = s.board.EditTask(c.Request.Context(), who, id, board.TaskPatch{
		Title:         &form.Title,
		Description:   &form.Description,
		StatusID:      statusID,
		ClearStatus:   statusID == nil,
		AssigneeIDs:   &assignees,
		Deadline:      deadline,
		ClearDeadline: deadline == nil,
	})
	var verr *board.ValidationError
	if errors.As(err, &verr) {
		s.renderTaskForm(c, http.StatusBadRequest, b, &task, form, verr.Fields)
		return
	}
	if err != nil {
		s.pageError(c, err)
		return
	}
	c.Redirect(http.StatusFound, projectURL(task.ProjectID))
}

func (s *Server) handleTaskDelete(c *gin.Context) {
	id, ok := s.pageID(c, "id")
	if !ok {
		return
	}
	task, err := s.board.DeleteTask(c.Request.Context(), mustIdentity(c), id)
	if err != nil {
		s.pageError(c, err)
		return
	}
	recordEvent("task_deleted")
	c.Redirect(http.StatusFound, projectURL(task.ProjectID))
}

// handleTaskMove is the drag-and-drop endpoint: 204 on success.
func (s *Server) handleTaskMove(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	statusID, ok := parseID(c, "statusId")
	if !ok {
		return
	}
	if _, err := s.board.MoveTask(c.Request.Context(), mustIdentity(c), id, statusID); err != nil {
		s.respondError(c, errorStatus(err), err)
		return
	}
	recordEvent("task_moved")
	c.Status(http.StatusNoContent)
}

// handleTaskList lists tasks across the caller's projects, optionally one project.
func (s *Server) handleTaskList(c *gin.Context) {
	who := mustIdentity(c)
	var filter board.TaskFilter
	if raw := c.Query("project"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.notFound(c)
			return
		}
		filter.ProjectID = id
	}

	tasks, err := s.board.ListTasks(c.Request.Context(), who, filter)
	if err != nil {
		s.pageError(c, err)
		return
	}
	projects, err := s.board.ListProjects(c.Request.Context(), who)
	if err != nil {
		s.pageError(c, err)
		return
	}
	byID := make(map[int64]models.Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}
	s.html(c, http.StatusOK, "task_list", gin.H{"title": "Tasks", "tasks": tasks, "projects": byID})
}
