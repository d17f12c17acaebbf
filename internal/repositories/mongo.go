package repositories

import (
	"context"
	"errors"
	"time"

	"scrumboard/backend/internal/models"

	"github.com/gofrs/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection    = "users"
	tokensCollection   = "tokens"
	projectsCollection = "projects"
	backlogCollection  = "productbacklogitems"
	sprintsCollection  = "sprintbacklogs"
	tasksCollection    = "tasks"
)

// MongoStore is the document Store backend. Transactions need a replica set;
// with transactions disabled WithinTx runs the callback directly.
type MongoStore struct {
	client       *mongo.Client
	db           *mongo.Database
	session      mongo.Session
	transactions bool
}

func NewMongoStore(client *mongo.Client, database string, transactions bool) *MongoStore {
	return &MongoStore{
		client:       client,
		db:           client.Database(database),
		transactions: transactions,
	}
}

// EnsureIndexes creates the unique indexes and the token TTL index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		tokensCollection: {
			{Keys: bson.D{{Key: "token", Value: 1}}},
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		projectsCollection: {
			{Keys: bson.D{{Key: "manager", Value: 1}}},
			{Keys: bson.D{{Key: "team", Value: 1}}},
		},
		backlogCollection: {
			{Keys: bson.D{{Key: "project", Value: 1}, {Key: "order", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		sprintsCollection: {
			{Keys: bson.D{{Key: "project", Value: 1}, {Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		tasksCollection: {
			{Keys: bson.D{{Key: "project", Value: 1}}},
			{Keys: bson.D{{Key: "sprint", Value: 1}}},
			{Keys: bson.D{{Key: "story", Value: 1}}},
		},
	}
	for name, idx := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}

func (s *MongoStore) Users() UserRepository       { return &mongoUsers{s} }
func (s *MongoStore) Tokens() TokenRepository     { return &mongoTokens{s} }
func (s *MongoStore) Projects() ProjectRepository { return &mongoProjects{s} }
func (s *MongoStore) Backlog() BacklogRepository  { return &mongoBacklog{s} }
func (s *MongoStore) Sprints() SprintRepository   { return &mongoSprints{s} }
func (s *MongoStore) Tasks() TaskRepository       { return &mongoTasks{s} }

func (s *MongoStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if !s.transactions || s.session != nil {
		return fn(s)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	txStore := &MongoStore{client: s.client, db: s.db, session: session, transactions: true}
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(txStore)
	})
	return err
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) ctx(ctx context.Context) context.Context {
	if s.session == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, s.session)
}

func (s *MongoStore) coll(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func translateMongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}

func (s *MongoStore) findOne(ctx context.Context, coll string, filter bson.M, out interface{}) error {
	return translateMongoError(s.coll(coll).FindOne(s.ctx(ctx), filter).Decode(out))
}

func (s *MongoStore) findAll(ctx context.Context, coll string, filter bson.M, sort bson.D, out interface{}) error {
	opts := options.Find()
	if sort != nil {
		opts.SetSort(sort)
	}
	cur, err := s.coll(coll).Find(s.ctx(ctx), filter, opts)
	if err != nil {
		return translateMongoError(err)
	}
	return translateMongoError(cur.All(s.ctx(ctx), out))
}

func (s *MongoStore) insert(ctx context.Context, coll string, doc interface{}) error {
	_, err := s.coll(coll).InsertOne(s.ctx(ctx), doc)
	return translateMongoError(err)
}

func (s *MongoStore) replace(ctx context.Context, coll, id string, doc interface{}) error {
	res, err := s.coll(coll).ReplaceOne(s.ctx(ctx), bson.M{"_id": id}, doc)
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) updateOne(ctx context.Context, coll string, filter, update bson.M) (int64, error) {
	res, err := s.coll(coll).UpdateOne(s.ctx(ctx), filter, update)
	if err != nil {
		return 0, translateMongoError(err)
	}
	return res.MatchedCount, nil
}

func (s *MongoStore) deleteOne(ctx context.Context, coll, id string) error {
	res, err := s.coll(coll).DeleteOne(s.ctx(ctx), bson.M{"_id": id})
	if err != nil {
		return translateMongoError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) deleteMany(ctx context.Context, coll string, filter bson.M) (int64, error) {
	res, err := s.coll(coll).DeleteMany(s.ctx(ctx), filter)
	if err != nil {
		return 0, translateMongoError(err)
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) unset(ctx context.Context, coll string, filter bson.M, field string) error {
	_, err := s.coll(coll).UpdateMany(s.ctx(ctx), filter, bson.M{"$unset": bson.M{field: ""}})
	return translateMongoError(err)
}

func stamp(createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}

type mongoUsers struct{ s *MongoStore }

func (r *mongoUsers) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = newID()
	}
	stamp(&user.CreatedAt, &user.UpdatedAt)
	return r.s.insert(ctx, usersCollection, toUserDoc(user))
}

func (r *mongoUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var doc userDoc
	if err := r.s.findOne(ctx, usersCollection, bson.M{"_id": id.String()}, &doc); err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (r *mongoUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var doc userDoc
	if err := r.s.findOne(ctx, usersCollection, bson.M{"email": email}, &doc); err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (r *mongoUsers) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	var docs []userDoc
	filter := bson.M{"_id": bson.M{"$in": idStrings(ids)}}
	if err := r.s.findAll(ctx, usersCollection, filter, bson.D{{Key: "name", Value: 1}}, &docs); err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(docs))
	for i := range docs {
		users = append(users, *docs[i].model())
	}
	return users, nil
}

func (r *mongoUsers) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	return r.s.replace(ctx, usersCollection, user.ID.String(), toUserDoc(user))
}

type mongoTokens struct{ s *MongoStore }

func (r *mongoTokens) Create(ctx context.Context, token *models.Token) error {
	if token.ID == uuid.Nil {
		token.ID = newID()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	return r.s.insert(ctx, tokensCollection, toTokenDoc(token))
}

func (r *mongoTokens) FindByToken(ctx context.Context, token string, now time.Time) (*models.Token, error) {
	var doc tokenDoc
	filter := bson.M{"token": token, "expiresAt": bson.M{"$gt": now.UTC()}}
	if err := r.s.findOne(ctx, tokensCollection, filter, &doc); err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (r *mongoTokens) Delete(ctx context.Context, id uuid.UUID) error {
	return r.s.deleteOne(ctx, tokensCollection, id.String())
}

func (r *mongoTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.s.deleteMany(ctx, tokensCollection, bson.M{"expiresAt": bson.M{"$lte": now.UTC()}})
}

type mongoProjects struct{ s *MongoStore }

func (r *mongoProjects) Create(ctx context.Context, project *models.Project) error {
	if project.ID == uuid.Nil {
		project.ID = newID()
	}
	stamp(&project.CreatedAt, &project.UpdatedAt)
	return r.s.insert(ctx, projectsCollection, toProjectDoc(project))
}

func (r *mongoProjects) FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var doc projectDoc
	if err := r.s.findOne(ctx, projectsCollection, bson.M{"_id": id.String()}, &doc); err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (r *mongoProjects) FindVisibleTo(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	var docs []projectDoc
	filter := bson.M{"$or": bson.A{
		bson.M{"manager": userID.String()},
		bson.M{"team": userID.String()},
	}}
	if err := r.s.findAll(ctx, projectsCollection, filter, bson.D{{Key: "createdAt", Value: 1}}, &docs); err != nil {
		return nil, err
	}
	projects := make([]models.Project, 0, len(docs))
	for i := range docs {
		projects = append(projects, *docs[i].model())
	}
	return projects, nil
}

func (r *mongoProjects) UpdateDetails(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now().UTC()
	matched, err := r.s.updateOne(ctx, projectsCollection, bson.M{"_id": project.ID.String()}, bson.M{"$set": bson.M{
		"projectName": project.ProjectName,
		"clientName":  project.ClientName,
		"description": project.Description,
		"updatedAt":   project.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if matched == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoProjects) AddTask(ctx context.Context, projectID, taskID uuid.UUID) error {
	return r.changeList(ctx, bson.M{"_id": projectID.String()}, "$addToSet", "tasks", taskID)
}

func (r *mongoProjects) RemoveTask(ctx context.Context, projectID, taskID uuid.UUID) error {
	return r.changeList(ctx, bson.M{"_id": projectID.String()}, "$pull", "tasks", taskID)
}

func (r *mongoProjects) AddMember(ctx context.Context, projectID, userID uuid.UUID) error {
	filter := bson.M{"_id": projectID.String(), "team": bson.M{"$ne": userID.String()}}
	err := r.changeList(ctx, filter, "$addToSet", "team", userID)
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	if _, findErr := r.FindByID(ctx, projectID); findErr != nil {
		return findErr
	}
	return ErrDuplicate
}

func (r *mongoProjects) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	filter := bson.M{"_id": projectID.String(), "team": userID.String()}
	return r.changeList(ctx, filter, "$pull", "team", userID)
}

func (r *mongoProjects) changeList(ctx context.Context, filter bson.M, op, field string, id uuid.UUID) error {
	matched, err := r.s.updateOne(ctx, projectsCollection, filter, bson.M{
		op:     bson.M{field: id.String()},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if matched == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoProjects) Delete(ctx context.Context, id uuid.UUID) error {
	return r.s.deleteOne(ctx, projectsCollection, id.String())
}

type mongoBacklog struct{ s *MongoStore }

func (r *mongoBacklog) Create(ctx context.Context, item *models.ProductBacklogItem) error {
	if item.ID == uuid.Nil {
		item.ID = newID()
	}
	stamp(&item.CreatedAt, &item.UpdatedAt)
	return r.s.insert(ctx, backlogCollection, toBacklogDoc(item))
}

func (r *mongoBacklog) FindByID(ctx context.Context, id uuid.UUID) (*models.ProductBacklogItem, error) {
	var doc backlogDoc
	if err := r.s.findOne(ctx, backlogCollection, bson.M{"_id": id.String()}, &doc); err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (r *mongoBacklog) FindByProject(ctx context.Context, projectID uuid.UUID) ([]models.ProductBacklogItem, error) {
	return r.find(ctx, bson.M{"project": projectID.String()})
}

func (r *mongoBacklog) FindByIDs(ctx context.Context, projectID uuid.UUID, ids []uuid.UUID) ([]models.ProductBacklogItem, error) {
	return r.find(ctx, bson.M{"project": projectID.String(), "_id": bson.M{"$in": idStrings(ids)}})
}

func (r *mongoBacklog) find(ctx context.Context, filter bson.M) ([]models.ProductBacklogItem, error) {
	var docs []backlogDoc
	if err := r.s.findAll(ctx, backlogCollection, filter, bson.D{{Key: "order", Value: 1}}, &docs); err != nil {
		return nil, err
	}
	items := make([]models.ProductBacklogItem, 0, len(docs))
	for i := range docs {
		items = append(items, *docs[i].model())
	}
	return items, nil
}

func (r *mongoBacklog) CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	n, err := r.s.coll(backlogCollection).CountDocuments(r.s.ctx(ctx), bson.M{"project": projectID.String()})
	return n, translateMongoError(err)
}

func (r *mongoBacklog) Update(ctx context.Context, item *models.ProductBacklogItem) error {
	item.UpdatedAt = time.Now().UTC()
	return r.s.replace(ctx, backlogCollection, item.ID.String(), toBacklogDoc(item))
}

func (r *mongoBacklog) UpdateOrder(ctx context.Context, id uuid.UUID, order int) error {
	res, err := r.s.coll(backlogCollection).UpdateOne(r.s.ctx(ctx),
		bson.M{"_id": id.String()},
		bson.M{"$set": bson.M{"order": order, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return translateMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoBacklog) Delete(ctx context.Context, id uuid.UUID) error {
	return r.s.deleteOne(ctx, backlogCollection, id.String())
}

func (r *mongoBacklog) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	_, err := r.s.deleteMany(ctx, backlogCollection, bson.M{"project": projectID.String()})
	return err
}

type mongoSprints struct{ s *MongoStore }

func (r *mongoSprints) Create(ctx context.Context, sprint *models.Sprint) error {
	if sprint.ID == uuid.Nil {
		sprint.ID = newID()
	}
	if sprint.Status == "" {
		sprint.Status = models.SprintPlanned
	}
	stamp(&sprint.CreatedAt, &sprint.UpdatedAt)
	return r.s.insert(ctx, sprintsCollection, toSprintDoc(sprint))
}

func (r *mongoSprints) FindByID(ctx context.Context, id uuid.UUID) (*models.Sprint, error) {
	var doc sprintDoc
	if err := r.s.findOne(ctx, sprintsCollection, bson.M{"_id": id.String()}, &doc); err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (r *mongoSprints) FindByProject(ctx context.Context, projectID uuid.UUID) ([]models.Sprint, error) {
	var docs []sprintDoc
	sort := bson.D{{Key: "startDate", Value: 1}, {Key: "createdAt", Value: 1}}
	if err := r.s.findAll(ctx, sprintsCollection, bson.M{"project": projectID.String()}, sort, &docs); err != nil {
		return nil, err
	}
	sprints := make([]models.Sprint, 0, len(docs))
	for i := range docs {
		sprints = append(sprints, *docs[i].model())
	}
	return sprints, nil
}

func (r *mongoSprints) FindByName(ctx context.Context, projectID uuid.UUID, name string) (*models.Sprint, error) {
	var doc sprintDoc
	if err := r.s.findOne(ctx, sprintsCollection, bson.M{"project": projectID.String(), "name": name}, &doc); err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (r *mongoSprints) Update(ctx context.Context, sprint *models.Sprint) error {
	sprint.UpdatedAt = time.Now().UTC()
	return r.s.replace(ctx, sprintsCollection, sprint.ID.String(), toSprintDoc(sprint))
}

func (r *mongoSprints) RemoveStory(ctx context.Context, projectID, storyID uuid.UUID) error {
	_, err := r.s.coll(sprintsCollection).UpdateMany(r.s.ctx(ctx),
		bson.M{"project": projectID.String(), "stories": storyID.String()},
		bson.M{"$pull": bson.M{"stories": storyID.String()}, "$set": bson.M{"updatedAt": time.Now().UTC()}})
	return translateMongoError(err)
}

func (r *mongoSprints) Delete(ctx context.Context, id uuid.UUID) error {
	return r.s.deleteOne(ctx, sprintsCollection, id.String())
}

func (r *mongoSprints) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	_, err := r.s.deleteMany(ctx, sprintsCollection, bson.M{"project": projectID.String()})
	return err
}

type mongoTasks struct{ s *MongoStore }

func (r *mongoTasks) Create(ctx context.Context, task *models.Task) error {
	if task.ID == uuid.Nil {
		task.ID = newID()
	}
	if task.Status == "" {
		task.Status = models.TaskPending
	}
	stamp(&task.CreatedAt, &task.UpdatedAt)
	return r.s.insert(ctx, tasksCollection, toTaskDoc(task))
}

func (r *mongoTasks) FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var doc taskDoc
	if err := r.s.findOne(ctx, tasksCollection, bson.M{"_id": id.String()}, &doc); err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (r *mongoTasks) FindByProject(ctx context.Context, projectID uuid.UUID) ([]models.Task, error) {
	var docs []taskDoc
	if err := r.s.findAll(ctx, tasksCollection, bson.M{"project": projectID.String()}, bson.D{{Key: "createdAt", Value: 1}}, &docs); err != nil {
		return nil, err
	}
	tasks := make([]models.Task, 0, len(docs))
	for i := range docs {
		tasks = append(tasks, *docs[i].model())
	}
	return tasks, nil
}

func (r *mongoTasks) Update(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now().UTC()
	return r.s.replace(ctx, tasksCollection, task.ID.String(), toTaskDoc(task))
}

func (r *mongoTasks) Delete(ctx context.Context, id uuid.UUID) error {
	return r.s.deleteOne(ctx, tasksCollection, id.String())
}

func (r *mongoTasks) ClearSprint(ctx context.Context, sprintID uuid.UUID) error {
	return r.s.unset(ctx, tasksCollection, bson.M{"sprint": sprintID.String()}, "sprint")
}

func (r *mongoTasks) ClearStory(ctx context.Context, storyID uuid.UUID) error {
	return r.s.unset(ctx, tasksCollection, bson.M{"story": storyID.String()}, "story")
}

func (r *mongoTasks) ClearAssignee(ctx context.Context, projectID, userID uuid.UUID) error {
	return r.s.unset(ctx, tasksCollection, bson.M{"project": projectID.String(), "assignedTo": userID.String()}, "assignedTo")
}

func (r *mongoTasks) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	_, err := r.s.deleteMany(ctx, tasksCollection, bson.M{"project": projectID.String()})
	return err
}
