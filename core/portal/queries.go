package portal

import (
	"sort"
	"strings"

	"github.com/trezcool/classroom/core"
	"github.com/trezcool/classroom/core/classroom"
	"github.com/trezcool/classroom/core/user"
)

// RemovedClassName names the class of a lesson whose class no longer exists.
const RemovedClassName = "Turma removida"

type (
	// LessonFilter narrows the lessons of a student. Zero values match everything.
	LessonFilter struct {
		Text string `query:"q"`   // case-insensitive, on title and description
		Day  string `query:"day"` // YYYY-MM-DD, UTC
	}

	// StudentLesson is a lesson as seen by a student.
	StudentLesson struct {
		classroom.Lesson
		ClassName    string `json:"className"`
		ClassRemoved bool   `json:"classRemoved"`
		Present      bool   `json:"present"`
	}

	Stats struct {
		Classes     int `json:"classes"`
		Lessons     int `json:"lessons"`
		Materials   int `json:"materials"`
		Students    int `json:"students"`
		Enrollments int `json:"enrollments"`
		Attendances int `json:"attendances"`
		Ratings     int `json:"ratings"`
	}
)

func (p *Portal) Classes() []classroom.Class { return p.classes.Items() }
func (p *Portal) Lessons() []classroom.Lesson { return p.lessons.Items() }
func (p *Portal) Attendances() []classroom.Attendance { return p.attendances.Items() }
func (p *Portal) Enrollments() []classroom.Enrollment { return p.enrollments.Items() }
func (p *Portal) Ratings() []classroom.MaterialRating { return p.ratings.Items() }

// Users returns every profile, newest first, with the admin allow-list applied.
func (p *Portal) Users() []user.User {
	users := p.profiles.Users()
	for i := range users {
		users[i] = p.deps.AllowList.Apply(users[i])
	}
	return users
}

func (p *Portal) Students() []user.User {
	users := p.Users()
	students := make([]user.User, 0, len(users))
	for _, usr := range users {
		if usr.IsStudent() {
			students = append(students, usr)
		}
	}
	return students
}

// User returns the profile of id, with the admin allow-list applied.
func (p *Portal) User(id string) (user.User, bool) {
	usr, ok := p.profiles.Find(func(u user.User) bool { return u.ID == id })
	if !ok {
		return user.User{}, false
	}
	return p.deps.AllowList.Apply(usr), true
}

func (p *Portal) Class(id string) (classroom.Class, bool) {
	return p.classes.Find(func(c classroom.Class) bool { return c.ID == id })
}

func (p *Portal) Lesson(id string) (classroom.Lesson, bool) {
	return p.lessons.Find(func(l classroom.Lesson) bool { return l.ID == id })
}

// StudentClasses returns the classes the student is enrolled in.
func (p *Portal) StudentClasses(studentID string) []classroom.Class {
	enrolled := make(map[string]bool)
	for _, enr := range p.enrollments.Items() {
		if enr.StudentID == studentID {
			enrolled[enr.ClassID] = true
		}
	}
	classes := make([]classroom.Class, 0, len(enrolled))
	for _, cls := range p.classes.Items() {
		if enrolled[cls.ID] {
			classes = append(classes, cls)
		}
	}
	return classes
}

// ClassLessons returns the lessons of a class, in the repository order.
func (p *Portal) ClassLessons(classID string) []classroom.Lesson {
	lessons := make([]classroom.Lesson, 0)
	for _, l := range p.lessons.Items() {
		if l.ClassID == classID {
			lessons = append(lessons, l)
		}
	}
	return lessons
}

func (p *Portal) HasAttendance(studentID, lessonID string) bool {
	_, ok := p.attendances.Find(func(a classroom.Attendance) bool {
		return a.StudentID == studentID && a.LessonID == lessonID
	})
	return ok
}

func (p *Portal) AttendanceCount(lessonID string) int {
	var n int
	for _, a := range p.attendances.Items() {
		if a.LessonID == lessonID {
			n++
		}
	}
	return n
}

// AverageMaterialRating is the mean rating of a material; zero/zero when it has no rating.
func (p *Portal) AverageMaterialRating(materialID string) classroom.RatingSummary {
	var sum, n int
	for _, r := range p.ratings.Items() {
		if r.MaterialID == materialID {
			sum += r.Rating
			n++
		}
	}
	if n == 0 {
		return classroom.RatingSummary{}
	}
	return classroom.RatingSummary{Average: float64(sum) / float64(n), Count: n}
}

// MaterialRating returns the rating given by the student to the material, or nil.
func (p *Portal) MaterialRating(studentID, materialID string) *classroom.MaterialRating {
	r, ok := p.ratings.Find(func(r classroom.MaterialRating) bool {
		return r.StudentID == studentID && r.MaterialID == materialID
	})
	if !ok {
		return nil
	}
	return &r
}

// StudentLessons returns the lessons of the classes the student is enrolled in, earliest first.
func (p *Portal) StudentLessons(studentID string, filter LessonFilter) []StudentLesson {
	text := core.CleanString(filter.Text, true /* lower */)
	day := core.CleanString(filter.Day)

	classNames := make(map[string]string)
	for _, cls := range p.classes.Items() {
		classNames[cls.ID] = cls.Name
	}
	enrolled := make(map[string]bool)
	for _, enr := range p.enrollments.Items() {
		if enr.StudentID == studentID {
			enrolled[enr.ClassID] = true
		}
	}

	lessons := make([]StudentLesson, 0)
	for _, l := range p.lessons.Items() {
		if !enrolled[l.ClassID] {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(l.Title+" "+l.Description), text) {
			continue
		}
		if day != "" && l.Date.UTC().Format("2006-01-02") != day {
			continue
		}
		name, ok := classNames[l.ClassID]
		if !ok {
			name = RemovedClassName
		}
		lessons = append(lessons, StudentLesson{
			Lesson:       l,
			ClassName:    name,
			ClassRemoved: !ok,
			Present:      p.HasAttendance(studentID, l.ID),
		})
	}
	sort.SliceStable(lessons, func(i, j int) bool {
		return lessons[i].Date.Before(lessons[j].Date)
	})
	return lessons
}

// CanAccessMaterials reports whether the user may open the materials of a lesson:
// admins always, students once their attendance is marked.
func (p *Portal) CanAccessMaterials(userID, lessonID string) bool {
	if actor := p.Actor(); userID == actor.ID {
		if actor.IsAdmin() {
			return true
		}
	} else if usr, ok := p.User(userID); ok && usr.IsAdmin() {
		return true
	}
	return p.HasAttendance(userID, lessonID)
}

// EnrolledStudents returns the profiles of the students enrolled in a class.
func (p *Portal) EnrolledStudents(classID string) []user.User {
	enrolled := make(map[string]bool)
	for _, enr := range p.enrollments.Items() {
		if enr.ClassID == classID {
			enrolled[enr.StudentID] = true
		}
	}
	students := make([]user.User, 0, len(enrolled))
	for _, usr := range p.Users() {
		if enrolled[usr.ID] {
			students = append(students, usr)
		}
	}
	return students
}

func (p *Portal) Stats() Stats {
	lessons := p.lessons.Items()
	var materials int
	for _, l := range lessons {
		materials += len(l.Materials)
	}
	return Stats{
		Classes:     len(p.classes.Items()),
		Lessons:     len(lessons),
		Materials:   materials,
		Students:    len(p.Students()),
		Enrollments: len(p.enrollments.Items()),
		Attendances: len(p.attendances.Items()),
		Ratings:     len(p.ratings.Items()),
	}
}

// LessonCalendar renders a lesson as an iCalendar file.
func (p *Portal) LessonCalendar(lessonID string) (string, bool) {
	l, ok := p.Lesson(lessonID)
	if !ok {
		return "", false
	}
	return classroom.LessonICS(l, core.NowFunc()), true
}
