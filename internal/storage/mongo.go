package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/cab-booking/internal/models"
)

// NewMongoStores connects to the document backend. One collection per
// entity; Claim maps onto FindOneAndUpdate so the availability flip is a
// single conditional write.
func NewMongoStores(ctx context.Context, uri, dbName string) (*Stores, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, err
	}
	db := client.Database(dbName)
	return &Stores{
		Users:    &mongoUsers{col: db.Collection("users")},
		Cabs:     &mongoCabs{col: db.Collection("cabs")},
		Bookings: &mongoBookings{col: db.Collection("bookings")},
		Payments: &mongoPayments{col: db.Collection("payments")},
	}, nil
}

func mapMongoErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

type mongoUsers struct{ col *mongo.Collection }

func (s *mongoUsers) GetByID(ctx context.Context, id string) (models.User, error) {
	var u models.User
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	return u, mapMongoErr(err)
}

func (s *mongoUsers) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.col.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	return u, mapMongoErr(err)
}

func (s *mongoUsers) List(ctx context.Context) ([]models.User, error) {
	cur, err := s.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var out []models.User
	return out, cur.All(ctx, &out)
}

func (s *mongoUsers) Insert(ctx context.Context, u models.User) error {
	_, err := s.col.InsertOne(ctx, u)
	return err
}

func (s *mongoUsers) Replace(ctx context.Context, u models.User) error {
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoUsers) Delete(ctx context.Context, id string) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

type mongoCabs struct{ col *mongo.Collection }

func (s *mongoCabs) GetByID(ctx context.Context, id string) (models.Cab, error) {
	var c models.Cab
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	return c, mapMongoErr(err)
}

func (s *mongoCabs) List(ctx context.Context) ([]models.Cab, error) {
	cur, err := s.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var out []models.Cab
	return out, cur.All(ctx, &out)
}

func (s *mongoCabs) Insert(ctx context.Context, c models.Cab) error {
	_, err := s.col.InsertOne(ctx, c)
	return err
}

func (s *mongoCabs) Replace(ctx context.Context, c models.Cab) error {
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoCabs) Delete(ctx context.Context, id string) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoCabs) FirstAvailable(ctx context.Context, t models.CabType) (models.Cab, error) {
	var c models.Cab
	err := s.col.FindOne(ctx, bson.M{"type": t, "is_available": true}).Decode(&c)
	return c, mapMongoErr(err)
}

func (s *mongoCabs) Claim(ctx context.Context, t models.CabType) (models.Cab, error) {
	var c models.Cab
	err := s.col.FindOneAndUpdate(ctx,
		bson.M{"type": t, "is_available": true},
		bson.M{"$set": bson.M{"is_available": false}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&c)
	return c, mapMongoErr(err)
}

func (s *mongoCabs) SetAvailability(ctx context.Context, id string, available bool) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"is_available": available}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoCabs) Count(ctx context.Context) (int, error) {
	n, err := s.col.CountDocuments(ctx, bson.M{})
	return int(n), err
}

type mongoBookings struct{ col *mongo.Collection }

func (s *mongoBookings) GetByID(ctx context.Context, id string) (models.Booking, error) {
	var b models.Booking
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	return b, mapMongoErr(err)
}

func (s *mongoBookings) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Booking, error) {
	cur, err := s.col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var out []models.Booking
	return out, cur.All(ctx, &out)
}

func (s *mongoBookings) List(ctx context.Context) ([]models.Booking, error) {
	return s.find(ctx, bson.M{})
}

func (s *mongoBookings) Insert(ctx context.Context, b models.Booking) error {
	_, err := s.col.InsertOne(ctx, b)
	return err
}

func (s *mongoBookings) Replace(ctx context.Context, b models.Booking) error {
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": b.ID}, b)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoBookings) Delete(ctx context.Context, id string) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoBookings) ByRider(ctx context.Context, riderID string) ([]models.Booking, error) {
	return s.find(ctx, bson.M{"rider_id": riderID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (s *mongoBookings) ByStatus(ctx context.Context, st models.BookingStatus) ([]models.Booking, error) {
	return s.find(ctx, bson.M{"status": st}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (s *mongoBookings) Recent(ctx context.Context, n int) ([]models.Booking, error) {
	return s.find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(n)))
}

type mongoPayments struct{ col *mongo.Collection }

func (s *mongoPayments) GetByID(ctx context.Context, id string) (models.Payment, error) {
	var p models.Payment
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	return p, mapMongoErr(err)
}

func (s *mongoPayments) find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Payment, error) {
	cur, err := s.col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var out []models.Payment
	return out, cur.All(ctx, &out)
}

func (s *mongoPayments) List(ctx context.Context) ([]models.Payment, error) {
	return s.find(ctx, bson.M{})
}

func (s *mongoPayments) Insert(ctx context.Context, p models.Payment) error {
	_, err := s.col.InsertOne(ctx, p)
	return err
}

func (s *mongoPayments) Replace(ctx context.Context, p models.Payment) error {
	res, err := s.col.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoPayments) Delete(ctx context.Context, id string) error {
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoPayments) ByBooking(ctx context.Context, bookingID string) (models.Payment, error) {
	var p models.Payment
	err := s.col.FindOne(ctx, bson.M{"booking_id": bookingID},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})).Decode(&p)
	return p, mapMongoErr(err)
}

func (s *mongoPayments) ByRider(ctx context.Context, riderID string) ([]models.Payment, error) {
	return s.find(ctx, bson.M{"rider_id": riderID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (s *mongoPayments) Recent(ctx context.Context, n int) ([]models.Payment, error) {
	return s.find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(n)))
}
