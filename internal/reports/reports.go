// Package reports computes project metrics from already-loaded data.
// Every function is pure: the same inputs and clock give the same output.
package reports

import (
	"sort"
	"time"

	"scrumboard/backend/internal/models"

	"github.com/gofrs/uuid"
)

const ThroughputDays = 7

type Input struct {
	Project models.Project
	Tasks   []models.Task
	Sprints []models.Sprint
	Members []models.User
	Stories []models.ProductBacklogItem
	Now     time.Time
	// Location defines calendar-day boundaries. Defaults to UTC.
	Location *time.Location
}

type BacklogStatus struct {
	Pending     int `json:"pending"`
	OnHold      int `json:"onHold"`
	InProgress  int `json:"inProgress"`
	UnderReview int `json:"underReview"`
	Completed   int `json:"completed"`
	Total       int `json:"total"`
}

func (b *BacklogStatus) add(status models.TaskStatus) {
	switch status {
	case models.TaskPending:
		b.Pending++
	case models.TaskOnHold:
		b.OnHold++
	case models.TaskInProgress:
		b.InProgress++
	case models.TaskUnderReview:
		b.UnderReview++
	case models.TaskCompleted:
		b.Completed++
	}
	b.Total++
}

type SprintSummary struct {
	Planned   int `json:"planned"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	Total     int `json:"total"`
}

type BurndownPoint struct {
	Date            string `json:"date"`
	DayIndex        int    `json:"dayIndex"`
	IdealRemaining  int    `json:"idealRemaining"`
	IdealCompleted  int    `json:"idealCompleted"`
	ActualRemaining int    `json:"actualRemaining"`
	ActualCompleted int    `json:"actualCompleted"`
}

type SprintReport struct {
	SprintID       uuid.UUID           `json:"sprintId"`
	Name           string              `json:"name"`
	StartDate      time.Time           `json:"startDate"`
	EndDate        time.Time           `json:"endDate"`
	Status         models.SprintStatus `json:"status"`
	TotalTasks     int                 `json:"totalTasks"`
	CompletedTasks int                 `json:"completedTasks"`
	Progress       int                 `json:"progress"`
	DaysRemaining  int                 `json:"daysRemaining"`
	Burndown       []BurndownPoint     `json:"burndown"`
}

type LastSprintSummary struct {
	SprintID        uuid.UUID `json:"sprintId"`
	Name            string    `json:"name"`
	EndDate         time.Time `json:"endDate"`
	IncompleteTasks int       `json:"incompleteTasks"`
}

type DailyThroughput struct {
	Date      string `json:"date"`
	Completed int    `json:"completed"`
}

type MemberBreakdown struct {
	UserID         uuid.UUID     `json:"userId"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	Tasks          BacklogStatus `json:"tasks"`
	CompletionRate int           `json:"completionRate"`
}

type ProjectMetrics struct {
	ProjectID       uuid.UUID          `json:"projectId"`
	ProjectName     string             `json:"projectName"`
	GeneratedAt     time.Time          `json:"generatedAt"`
	Backlog         BacklogStatus      `json:"backlog"`
	Sprints         SprintSummary      `json:"sprints"`
	ActiveSprint    *SprintReport      `json:"activeSprint"`
	LastSprint      *LastSprintSummary `json:"lastCompletedSprint"`
	Throughput      []DailyThroughput  `json:"throughput"`
	Members         []MemberBreakdown  `json:"members"`
	UnassignedTasks int                `json:"unassignedTasks"`
	Progress        int                `json:"progress"`
	StoryCount      int                `json:"storyCount"`
	StoryPoints     float64            `json:"storyPoints"`
}

// Compute builds the full project report.
func Compute(in Input) ProjectMetrics {
	loc := location(in.Location)
	now := in.Now.In(loc)

	m := ProjectMetrics{
		ProjectID:   in.Project.ID,
		ProjectName: in.Project.ProjectName,
		GeneratedAt: in.Now,
		Backlog:     StatusHistogram(in.Tasks),
		Sprints:     SummarizeSprints(in.Sprints, now),
		Throughput:  Throughput(in.Tasks, now),
		Members:     BreakdownByMember(in.Project, in.Members, in.Tasks),
	}

	for i := range in.Tasks {
		if in.Tasks[i].AssignedTo == nil {
			m.UnassignedTasks++
		}
	}
	m.Progress = Percent(m.Backlog.Completed, m.Backlog.Total)

	for i := range in.Stories {
		m.StoryCount++
		m.StoryPoints += in.Stories[i].Estimate
	}

	if active := SelectActiveSprint(in.Sprints, now); active != nil {
		report := BuildSprintReport(*active, in.Tasks, now)
		m.ActiveSprint = &report
	}
	m.LastSprint = LastCompletedSprint(in.Sprints, in.Tasks, now)

	return m
}

func StatusHistogram(tasks []models.Task) BacklogStatus {
	var b BacklogStatus
	for i := range tasks {
		b.add(tasks[i].Status)
	}
	return b
}

// EffectiveStatus resolves the reporting status of a sprint. A stored status
// other than planned is authoritative; a planned sprint is classified by its
// date range against today.
func EffectiveStatus(s models.Sprint, now time.Time) models.SprintStatus {
	if s.Status != "" && s.Status != models.SprintPlanned {
		return s.Status
	}
	loc := now.Location()
	today := dayStart(now)
	switch {
	case today.Before(dayStart(s.StartDate.In(loc))):
		return models.SprintPlanned
	case today.After(dayStart(s.EndDate.In(loc))):
		return models.SprintCompleted
	default:
		return models.SprintActive
	}
}

func SummarizeSprints(sprints []models.Sprint, now time.Time) SprintSummary {
	var s SprintSummary
	for i := range sprints {
		switch EffectiveStatus(sprints[i], now) {
		case models.SprintPlanned:
			s.Planned++
		case models.SprintActive:
			s.Active++
		case models.SprintCompleted:
			s.Completed++
		case models.SprintCancelled:
			s.Cancelled++
		}
		s.Total++
	}
	return s
}

// SelectActiveSprint picks the effectively active sprint that started last,
// breaking ties by the latest creation time.
func SelectActiveSprint(sprints []models.Sprint, now time.Time) *models.Sprint {
	var selected *models.Sprint
	for i := range sprints {
		s := &sprints[i]
		if EffectiveStatus(*s, now) != models.SprintActive {
			continue
		}
		if selected == nil ||
			s.StartDate.After(selected.StartDate) ||
			(s.StartDate.Equal(selected.StartDate) && s.CreatedAt.After(selected.CreatedAt)) {
			selected = s
		}
	}
	return selected
}

func BuildSprintReport(sprint models.Sprint, tasks []models.Task, now time.Time) SprintReport {
	inSprint := tasksInSprint(tasks, sprint.ID)
	completed := 0
	for i := range inSprint {
		if inSprint[i].IsCompleted() {
			completed++
		}
	}

	loc := now.Location()
	daysRemaining := daySpan(dayStart(now), dayStart(sprint.EndDate.In(loc)))
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	return SprintReport{
		SprintID:       sprint.ID,
		Name:           sprint.Name,
		StartDate:      sprint.StartDate,
		EndDate:        sprint.EndDate,
		Status:         EffectiveStatus(sprint, now),
		TotalTasks:     len(inSprint),
		CompletedTasks: completed,
		Progress:       Percent(completed, len(inSprint)),
		DaysRemaining:  daysRemaining,
		Burndown:       Burndown(sprint, inSprint, loc),
	}
}

// Burndown returns one point per calendar day of the sprint, inclusive.
// Tasks outside the sprint are ignored.
func Burndown(sprint models.Sprint, tasks []models.Task, loc *time.Location) []BurndownPoint {
	loc = location(loc)
	inSprint := tasksInSprint(tasks, sprint.ID)
	total := len(inSprint)

	start := dayStart(sprint.StartDate.In(loc))
	end := dayStart(sprint.EndDate.In(loc))
	span := daySpan(start, end)
	if span < 0 {
		span = 0
	}
	totalDays := span
	if totalDays < 1 {
		totalDays = 1
	}

	points := make([]BurndownPoint, 0, span+1)
	for i := 0; i <= span; i++ {
		day := start.AddDate(0, 0, i)
		dayEnd := day.AddDate(0, 0, 1)

		done := 0
		for j := range inSprint {
			if inSprint[j].IsCompleted() && inSprint[j].UpdatedAt.Before(dayEnd) {
				done++
			}
		}

		idealRemaining := IdealRemaining(total, i, totalDays)
		points = append(points, BurndownPoint{
			Date:            day.Format("2006-01-02"),
			DayIndex:        i,
			IdealRemaining:  idealRemaining,
			IdealCompleted:  total - idealRemaining,
			ActualRemaining: total - done,
			ActualCompleted: done,
		})
	}
	return points
}

// IdealRemaining is round(total * (1 - day/totalDays)) with halves rounded up.
func IdealRemaining(total, day, totalDays int) int {
	if totalDays < 1 {
		totalDays = 1
	}
	if day > totalDays {
		day = totalDays
	}
	return divRoundHalfUp(total*(totalDays-day), totalDays)
}

// LastCompletedSprint returns the non-cancelled sprint with the latest end date
// that ended before today, or nil.
func LastCompletedSprint(sprints []models.Sprint, tasks []models.Task, now time.Time) *LastSprintSummary {
	loc := now.Location()
	today := dayStart(now)

	var last *models.Sprint
	for i := range sprints {
		s := &sprints[i]
		if s.Status == models.SprintCancelled {
			continue
		}
		if !dayStart(s.EndDate.In(loc)).Before(today) {
			continue
		}
		if last == nil || s.EndDate.After(last.EndDate) {
			last = s
		}
	}
	if last == nil {
		return nil
	}

	summary := &LastSprintSummary{SprintID: last.ID, Name: last.Name, EndDate: last.EndDate}
	for _, t := range tasksInSprint(tasks, last.ID) {
		if !t.IsCompleted() {
			summary.IncompleteTasks++
		}
	}
	return summary
}

// Throughput counts completed tasks per local calendar day over the trailing
// week, oldest day first and today last.
func Throughput(tasks []models.Task, now time.Time) []DailyThroughput {
	loc := now.Location()
	today := dayStart(now)
	first := today.AddDate(0, 0, -(ThroughputDays - 1))

	out := make([]DailyThroughput, ThroughputDays)
	for i := range out {
		out[i].Date = first.AddDate(0, 0, i).Format("2006-01-02")
	}

	for i := range tasks {
		if !tasks[i].IsCompleted() {
			continue
		}
		day := dayStart(tasks[i].UpdatedAt.In(loc))
		idx := daySpan(first, day)
		if idx >= 0 && idx < ThroughputDays {
			out[idx].Completed++
		}
	}
	return out
}

// BreakdownByMember reports assigned work for every project member with the
// Scrum Team role, in the order given by members.
func BreakdownByMember(project models.Project, members []models.User, tasks []models.Task) []MemberBreakdown {
	onProject := make(map[uuid.UUID]struct{})
	for _, id := range project.Members() {
		onProject[id] = struct{}{}
	}

	byUser := make(map[uuid.UUID][]models.Task)
	for i := range tasks {
		if tasks[i].AssignedTo != nil {
			byUser[*tasks[i].AssignedTo] = append(byUser[*tasks[i].AssignedTo], tasks[i])
		}
	}

	out := make([]MemberBreakdown, 0, len(members))
	for i := range members {
		u := members[i]
		if _, ok := onProject[u.ID]; !ok || u.Role != models.RoleScrumTeam {
			continue
		}
		hist := StatusHistogram(byUser[u.ID])
		out = append(out, MemberBreakdown{
			UserID:         u.ID,
			Name:           u.Name,
			Email:          u.Email,
			Tasks:          hist,
			CompletionRate: Percent(hist.Completed, hist.Total),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Percent returns round(100*part/whole), or 0 when whole is 0.
func Percent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return divRoundHalfUp(100*part, whole)
}

func divRoundHalfUp(num, den int) int {
	if den <= 0 {
		return 0
	}
	return (2*num + den) / (2 * den)
}

func tasksInSprint(tasks []models.Task, sprintID uuid.UUID) []models.Task {
	out := make([]models.Task, 0)
	for i := range tasks {
		if tasks[i].InSprint(sprintID) {
			out = append(out, tasks[i])
		}
	}
	return out
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daySpan counts calendar days from a to b; both must be day starts in the same location.
func daySpan(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
