package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/classroom/core/classroom"
	"github.com/trezcool/classroom/core/portal"
)

type (
	// LessonView is a lesson as served to the actor. Material links stay hidden until the actor can access them.
	LessonView struct {
		classroom.Lesson
		AttendanceCount    int  `json:"attendanceCount"`
		Present            bool `json:"present"`
		CanAccessMaterials bool `json:"canAccessMaterials"`
	}

	MaterialRatingView struct {
		classroom.RatingSummary
		Mine *classroom.MaterialRating `json:"mine"`
	}

	studentRequest struct {
		StudentID string `json:"studentId"`
	}

	ratingRequest struct {
		Rating int `json:"rating"`
	}
)

func registerClassroomAPI(g *echo.Group, authed []echo.MiddlewareFunc) {
	cg := g.Group("/classes", authed...)
	cg.GET("", listClasses)
	cg.POST("", createClass, adminMiddleware)
	cg.PUT("/:id", updateClass, adminMiddleware)
	cg.DELETE("/:id", deleteClass, adminMiddleware)
	cg.GET("/:id/lessons", classLessons)
	cg.GET("/:id/students", classStudents, adminMiddleware)
	cg.POST("/:id/enrollments", enroll)
	cg.DELETE("/:id/enrollments/:studentId", unenroll)

	lg := g.Group("/lessons", authed...)
	lg.GET("", listLessons)
	lg.POST("", createLesson, adminMiddleware)
	lg.GET("/:id", retrieveLesson)
	lg.PUT("/:id", updateLesson, adminMiddleware)
	lg.DELETE("/:id", deleteLesson, adminMiddleware)
	lg.POST("/:id/attendance", markAttendance)
	lg.DELETE("/:id/attendance/:studentId", unmarkAttendance)
	lg.GET("/:id/calendar.ics", lessonCalendar)
	lg.GET("/:id/materials/:materialId/rating", materialRating)
	lg.PUT("/:id/materials/:materialId/rating", rateMaterial)

	mg := g.Group("/me", authed...)
	mg.GET("/classes", myClasses)
	mg.GET("/lessons", myLessons)

	sg := g.Group("/stats", authed...)
	sg.GET("", stats, adminMiddleware)
}

func lessonView(p *portal.Portal, l classroom.Lesson) LessonView {
	actorID := p.Actor().ID
	view := LessonView{
		Lesson:             l,
		AttendanceCount:    p.AttendanceCount(l.ID),
		Present:            p.HasAttendance(actorID, l.ID),
		CanAccessMaterials: p.CanAccessMaterials(actorID, l.ID),
	}
	if !view.CanAccessMaterials {
		materials := make([]classroom.Material, len(l.Materials))
		for i, m := range l.Materials {
			m.URL = ""
			materials[i] = m
		}
		view.Materials = materials
	}
	return view
}

func lessonViews(p *portal.Portal, lessons []classroom.Lesson) []LessonView {
	views := make([]LessonView, 0, len(lessons))
	for _, l := range lessons {
		views = append(views, lessonView(p, l))
	}
	return views
}

// classes

func listClasses(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextPortal(ctx).Classes())
}

func createClass(ctx echo.Context) error {
	var data classroom.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	cls, err := contextPortal(ctx).CreateClass(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func updateClass(ctx echo.Context) error {
	p := contextPortal(ctx)
	id := ctx.Param("id")
	if _, ok := p.Class(id); !ok {
		return errHttpNotFound
	}
	var data classroom.UpdateClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err := p.UpdateClass(ctx.Request().Context(), id, data); err != nil {
		return err
	}
	cls, _ := p.Class(id)
	return ctx.JSON(http.StatusOK, cls)
}

func deleteClass(ctx echo.Context) error {
	if err := contextPortal(ctx).DeleteClass(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func classLessons(ctx echo.Context) error {
	p := contextPortal(ctx)
	if _, ok := p.Class(ctx.Param("id")); !ok {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, lessonViews(p, p.ClassLessons(ctx.Param("id"))))
}

func classStudents(ctx echo.Context) error {
	p := contextPortal(ctx)
	if _, ok := p.Class(ctx.Param("id")); !ok {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, p.EnrolledStudents(ctx.Param("id")))
}

func enroll(ctx echo.Context) error {
	p := contextPortal(ctx)
	data := studentRequest{StudentID: p.Actor().ID}
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to studentRequest")
	}
	enr, err := p.EnrollStudent(ctx.Request().Context(), data.StudentID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func unenroll(ctx echo.Context) error {
	err := contextPortal(ctx).UnenrollStudent(ctx.Request().Context(), ctx.Param("studentId"), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// lessons

func listLessons(ctx echo.Context) error {
	p := contextPortal(ctx)
	return ctx.JSON(http.StatusOK, lessonViews(p, p.Lessons()))
}

func createLesson(ctx echo.Context) error {
	p := contextPortal(ctx)
	var data classroom.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	l, err := p.CreateLesson(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, lessonView(p, l))
}

func retrieveLesson(ctx echo.Context) error {
	p := contextPortal(ctx)
	l, ok := p.Lesson(ctx.Param("id"))
	if !ok {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, lessonView(p, l))
}

func updateLesson(ctx echo.Context) error {
	p := contextPortal(ctx)
	id := ctx.Param("id")
	if _, ok := p.Lesson(id); !ok {
		return errHttpNotFound
	}
	var data classroom.UpdateLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLesson")
	}
	if err := p.UpdateLesson(ctx.Request().Context(), id, data); err != nil {
		return err
	}
	l, _ := p.Lesson(id)
	return ctx.JSON(http.StatusOK, lessonView(p, l))
}

func deleteLesson(ctx echo.Context) error {
	if err := contextPortal(ctx).DeleteLesson(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func markAttendance(ctx echo.Context) error {
	p := contextPortal(ctx)
	data := studentRequest{StudentID: p.Actor().ID}
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to studentRequest")
	}
	att, err := p.MarkAttendance(ctx.Request().Context(), data.StudentID, ctx.Param("id"), ctx.RealIP())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, att)
}

func unmarkAttendance(ctx echo.Context) error {
	err := contextPortal(ctx).UnmarkAttendance(ctx.Request().Context(), ctx.Param("studentId"), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func lessonCalendar(ctx echo.Context) error {
	p := contextPortal(ctx)
	l, ok := p.Lesson(ctx.Param("id"))
	if !ok {
		return errHttpNotFound
	}
	ics, _ := p.LessonCalendar(l.ID)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+classroom.ICSFilename(l)+`"`)
	return ctx.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(ics))
}

func materialRating(ctx echo.Context) error {
	p := contextPortal(ctx)
	materialID := ctx.Param("materialId")
	return ctx.JSON(http.StatusOK, MaterialRatingView{
		RatingSummary: p.AverageMaterialRating(materialID),
		Mine:          p.MaterialRating(p.Actor().ID, materialID),
	})
}

func rateMaterial(ctx echo.Context) error {
	var data ratingRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ratingRequest")
	}
	rating, err := contextPortal(ctx).RateMaterial(ctx.Request().Context(), classroom.NewRating{
		LessonID:   ctx.Param("id"),
		MaterialID: ctx.Param("materialId"),
		Rating:     data.Rating,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rating)
}

// me

func myClasses(ctx echo.Context) error {
	p := contextPortal(ctx)
	return ctx.JSON(http.StatusOK, p.StudentClasses(p.Actor().ID))
}

func myLessons(ctx echo.Context) error {
	p := contextPortal(ctx)
	filter := portal.LessonFilter{Text: ctx.QueryParam("q"), Day: ctx.QueryParam("day")}
	return ctx.JSON(http.StatusOK, p.StudentLessons(p.Actor().ID, filter))
}

func stats(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, contextPortal(ctx).Stats())
}
