package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"kanban/internal/board"
	"kanban/internal/models"
	"kanban/internal/validation"
)

type statusForm struct {
	Name  string `form:"name" binding:"required,max=100"`
	Order string `form:"order"`
}

// order parses the optional order field; empty means append.
func (f statusForm) order() (int, bool) {
	raw := strings.TrimSpace(f.Order)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil && n >= 0
}

func (s *Server) renderStatusForm(c *gin.Context, status int, project models.Project, current *models.Status, form statusForm, fields map[string]string) {
	action := "/statuses/create/" + strconv.FormatInt(project.ID, 10)
	title := "New column"
	if current != nil {
		action = "/statuses/edit/" + strconv.FormatInt(current.ID, 10)
		title = "Edit column"
	}
	if fields == nil {
		fields = map[string]string{}
	}
	s.html(c, status, "status_form", gin.H{
		"title":   title,
		"action":  action,
		"project": project,
		"status":  current,
		"form":    form,
		"errors":  fields,
	})
}

func bindStatusForm(c *gin.Context) (statusForm, int, map[string]string) {
	var form statusForm
	fields := map[string]string{}
	if err := c.ShouldBind(&form); err != nil {
		if msgs, ok := validation.Messages(err); ok {
			fields = msgs
		}
	}
	order, ok := form.order()
	if !ok {
		fields["order"] = "Enter a whole number greater than or equal to 0."
	}
	return form, order, fields
}

func (s *Server) handleStatusCreateForm(c *gin.Context) {
	projectID, ok := s.pageID(c, "projectId")
	if !ok {
		return
	}
	project, err := s.board.Project(c.Request.Context(), mustIdentity(c), projectID)
	if err != nil {
		s.pageError(c, err)
		return
	}
	s.renderStatusForm(c, http.StatusOK, project, nil, statusForm{}, nil)
}

// handleStatusCreate adds a column; a duplicate name re-renders the form.
func (s *Server) handleStatusCreate(c *gin.Context) {
	projectID, ok := s.pageID(c, "projectId")
	if !ok {
		return
	}
	who := mustIdentity(c)
	project, err := s.board.Project(c.Request.Context(), who, projectID)
	if err != nil {
		s.pageError(c, err)
		return
	}

	form, order, fields := bindStatusForm(c)
	if len(fields) > 0 {
		s.renderStatusForm(c, http.StatusBadRequest, project, nil, form, fields)
		return
	}
	_, err = s.board.CreateStatus(c.Request.Context(), who, projectID, form.Name, order)
	var verr *board.ValidationError
	if errors.As(err, &verr) {
		s.renderStatusForm(c, http.StatusBadRequest, project, nil, form, verr.Fields)
		return
	}
	if err != nil {
		s.pageError(c, err)
		return
	}
	recordEvent("status_created")
	c.Redirect(http.StatusFound, projectURL(projectID))
}

func (s *Server) handleStatusEditForm(c *gin.Context) {
	id, ok := s.pageID(c, "id")
	if !ok {
		return
	}
	who := mustIdentity(c)
	st, err := s.board.Status(c.Request.Context(), who, id)
	if err != nil {
		s.pageError(c, err)
		return
	}
	project, err := s.board.Project(c.Request.Context(), who, st.ProjectID)
	if err != nil {
		s.pageError(c, err)
		return
	}
	s.renderStatusForm(c, http.StatusOK, project, &st, statusForm{Name: st.Name, Order: strconv.Itoa(st.Order)}, nil)
}

// handleStatusEdit renames or moves a column.
func (s *Server) handleStatusEdit(c *gin.Context) {
	id, ok := s.pageID(c, "id")
	if !ok {
		return
	}
	who := mustIdentity(c)
	st, err := s.board.Status(c.Request.Context(), who, id)
	if err != nil {
		s.pageError(c, err)
		return
	}
	project, err := s.board.Project(c.Request.Context(), who, st.ProjectID)
	if err != nil {
		s.pageError(c, err)
		return
	}

	form, order, fields := bindStatusForm(c)
	if len(fields) > 0 {
		s.renderStatusForm(c, http.StatusBadRequest, project, &st, form, fields)
		return
	}
	var orderArg *int
	if strings.TrimSpace(form.Order) != "" {
		orderArg = &order
	}
	_, err = s.board.EditStatus(c.Request.Context(), who, id, &form.Name, orderArg)
	var verr *board.ValidationError
	if errors.As(err, &verr) {
		s.renderStatusForm(c, http.StatusBadRequest, project, &st, form, verr.Fields)
		return
	}
	if err != nil {
		s.pageError(c, err)
		return
	}
	c.Redirect(http.StatusFound, projectURL(st.ProjectID))
}

// handleStatusDelete removes a column; its tasks drop back to no status.
func (s *Server) handleStatusDelete(c *gin.Context) {
	id, ok := s.pageID(c, "id")
	if !ok {
		return
	}
	st, err := s.board.DeleteStatus(c.Request.Context(), mustIdentity(c), id)
	if err != nil {
		s.pageError(c, err)
		return
	}
	recordEvent("status_deleted")
	c.Redirect(http.StatusFound, projectURL(st.ProjectID))
}
