package repository

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/okian/gradebook/internal/domain/model"
	"github.com/okian/gradebook/internal/domain/types"
)

// demoNamespace scopes demo ids so they are stable across runs.
var demoNamespace = uuid.MustParse("8f5c1a52-6a1e-4c1b-9a55-2f0f3b8f6c10")

var (
	demoFirstNames = []string{"Amina", "Yann", "Lea", "Kofi", "Sara", "Omar", "Ines", "Malik", "Nora", "Theo", "Awa", "Hugo", "Fatou", "Jules"}
	demoLastNames  = []string{"Diallo", "Koffi", "Mensah", "Traore", "Benali", "Ndiaye", "Martin", "Kone", "Dubois", "Sow", "Bamba", "Petit"}
)

// DemoOption configures GenerateDemo.
type DemoOption func(*demoConfig)

type demoConfig struct {
	studentsPerCohort int
	seed              int64
	now               time.Time
}

// WithDemoStudents sets the number of students enrolled per curriculum and year.
func WithDemoStudents(n int) DemoOption {
	return func(c *demoConfig) {
		if n > 0 {
			c.studentsPerCohort = n
		}
	}
}

// WithDemoSeed sets the random seed used for generated scores.
func WithDemoSeed(seed int64) DemoOption {
	return func(c *demoConfig) {
		c.seed = seed
	}
}

// WithDemoNow anchors generated academic years on now.
func WithDemoNow(now time.Time) DemoOption {
	return func(c *demoConfig) {
		if !now.IsZero() {
			c.now = now
		}
	}
}

// DemoID returns the stable id GenerateDemo assigns to name.
func DemoID(name string) string {
	return uuid.NewSHA1(demoNamespace, []byte(name)).String()
}

type demoEvaluation struct {
	title       string
	maxScore    float64
	coefficient float64
}

var demoEvaluations = []demoEvaluation{
	{"Mathematics test", 20, 3},
	{"French essay", 20, 2},
	{"Physics lab", 100, 1},
}

// GenerateDemo builds two curricula over the current and previous academic
// years with three terms each. Past terms are fully graded, the open term is
// partially graded and planned terms have no grades.
func GenerateDemo(opts ...DemoOption) Dataset {
	cfg := demoConfig{studentsPerCohort: 12, seed: 42, now: time.Now().UTC()}
	for _, opt := range opts {
		opt(&cfg)
	}
	rng := rand.New(rand.NewSource(cfg.seed))

	var ds Dataset
	curricula := []string{"Grade 10 Science", "Grade 11 Literature"}
	for _, name := range curricula {
		ds.Curricula = append(ds.Curricula, model.Curriculum{ID: DemoID("curriculum/" + name), Name: name})
	}

	// school years start in September
	startYear := cfg.now.Year()
	if cfg.now.Month() < time.September {
		startYear--
	}
	for i, y := range []int{startYear - 1, startYear} {
		label := fmt.Sprintf("%d-%d", y, y+1)
		ds.AcademicYears = append(ds.AcademicYears, model.AcademicYear{
			ID:        DemoID("year/" + label),
			Label:     label,
			StartDate: time.Date(y, time.September, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(y+1, time.June, 30, 0, 0, 0, 0, time.UTC),
			Current:   i == 1,
		})
	}

	student := 0
	for _, cur := range ds.Curricula {
		for _, year := range ds.AcademicYears {
			cohort := cur.Name + "/" + year.Label
			var enrollments []string
			for n := 0; n < cfg.studentsPerCohort; n++ {
				student++
				st := Student{
					ID:            DemoID(fmt.Sprintf("student/%d", student)),
					StudentNumber: fmt.Sprintf("S%05d", student),
					FirstName:     demoFirstNames[rng.Intn(len(demoFirstNames))],
					LastName:      demoLastNames[rng.Intn(len(demoLastNames))],
				}
				en := Enrollment{
					ID:             DemoID(fmt.Sprintf("enrollment/%s/%d", cohort, n)),
					StudentID:      st.ID,
					CurriculumID:   cur.ID,
					AcademicYearID: year.ID,
				}
				ds.Students = append(ds.Students, st)
				ds.Enrollments = append(ds.Enrollments, en)
				enrollments = append(enrollments, en.ID)
			}

			for term := 1; term <= 3; term++ {
				start := year.StartDate.AddDate(0, (term-1)*3, 0)
				end := start.AddDate(0, 3, -1)
				status := termStatus(cfg.now, start, end)
				sc := model.Schedule{
					ID:             DemoID(fmt.Sprintf("schedule/%s/%d", cohort, term)),
					CurriculumID:   cur.ID,
					AcademicYearID: year.ID,
					Name:           fmt.Sprintf("Term %d", term),
					StartDate:      start,
					EndDate:        end,
					Status:         status,
				}
				ds.Schedules = append(ds.Schedules, sc)

				for i, de := range demoEvaluations {
					ev := model.Evaluation{
						ID:          DemoID(fmt.Sprintf("evaluation/%s/%d/%d", cohort, term, i)),
						ScheduleID:  sc.ID,
						Title:       de.title,
						MaxScore:    de.maxScore,
						Coefficient: de.coefficient,
						Date:        start.AddDate(0, 0, 21*(i+1)),
					}
					graded := 0
					switch status {
					case types.ScheduleClosed, types.ScheduleArchived:
						ev.Status = types.EvaluationCompleted
						graded = len(enrollments)
					case types.ScheduleOpen:
						ev.Status = types.EvaluationInProgress
						graded = len(enrollments) / 2
					default:
						ev.Status = types.EvaluationScheduled
					}
					ds.Evaluations = append(ds.Evaluations, ev)
					for _, en := range enrollments[:graded] {
						ds.Grades = append(ds.Grades, Grade{
							EvaluationID: ev.ID,
							EnrollmentID: en,
							Score:        demoScore(rng, ev.MaxScore),
							Status:       types.GradeValidated.String(),
						})
					}
				}
			}
		}
	}
	return ds
}

func termStatus(now, start, end time.Time) types.ScheduleStatus {
	switch {
	case now.Before(start):
		return types.SchedulePlanned
	case now.After(end.AddDate(1, 0, 0)):
		return types.ScheduleArchived
	case now.After(end):
		return types.ScheduleClosed
	default:
		return types.ScheduleOpen
	}
}

// demoScore draws a roughly bell-shaped score rounded to 0.5.
func demoScore(rng *rand.Rand, maxScore float64) float64 {
	v := (rng.Float64() + rng.Float64() + rng.Float64()) / 3 * maxScore
	return math.Min(maxScore, math.Round(v*2)/2)
}
