package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/relq/internal/core/model"
	"github.com/satishbabariya/relq/internal/core/model/schema"
)

const shopSchema = `
enum Rank {
  Private
  Corporal = 5
  General
}

type Address {
  Street String
  City   String?
}

type Tag {
  Label String @map("label")
  Rank  Rank
}

model Customer {
  Id       String  @id @map("CustomerID") @db.NChar(5)
  Name     String  @db.NVarChar(40)
  City     String? @db.NVarChar(15)
  Tenant   Int
  Address  Address
  Profile  Tag?    @json("ProfileJson")
  Tags     Tag[]   @json
  Scores   Int[]
  Orders   Order[]

  @@map("Customers")
  @@filter("c => c.Tenant == ctx.Tenant")
}

model Order {
  Id         Int      @id @map("OrderID")
  CustomerId String?  @map("CustomerID")
  Customer   Customer? @relation(fields: [CustomerId], references: [Id])
  Freight    Decimal  @db.Decimal(18, 2)

  @@map("Orders")
  @@temporal(start: "ValidFrom", end: "ValidTo")
}

model Animal {
  Id   Int @id
  Name String

  @@abstract
  @@discriminator(column: "Kind")
}

model Bird extends Animal {
  CanFly Boolean
}

model Kiwi extends Bird {
  FoundOn String
  @@discriminator("kiwi")
}
`

func TestLoad_Entities(t *testing.T) {
	m, err := schema.Load("shop.relq", shopSchema)
	require.NoError(t, err)

	c, err := m.EntitySet("Customers")
	require.NoError(t, err)
	assert.Equal(t, "Customer", c.Name)
	assert.Equal(t, "Customers", c.Table)
	require.Len(t, c.KeyProperties(), 1)

	id := c.KeyProperties()[0]
	assert.Equal(t, "CustomerID", id.Column)
	assert.Equal(t, 5, id.MaxLength)
	assert.True(t, id.FixedLength)
	assert.Equal(t, "c => c.Tenant == ctx.Tenant", c.QueryFilter())

	city := c.FindProperty("City")
	require.NotNil(t, city)
	assert.True(t, city.Nullable)
	assert.Equal(t, 15, city.MaxLength)

	scores := c.FindProperty("Scores")
	require.NotNil(t, scores)
	assert.True(t, scores.Collection)
	assert.Equal(t, model.KindInt, scores.Kind)
}

func TestLoad_Owned(t *testing.T) {
	m, err := schema.Load("shop.relq", shopSchema)
	require.NoError(t, err)
	c, err := m.Entity("Customer")
	require.NoError(t, err)

	addr := c.FindOwned("Address")
	require.NotNil(t, addr)
	assert.Equal(t, model.StorageTableSplit, addr.Storage)
	assert.Equal(t, "Address_Street", addr.ColumnFor(addr.Type.Property("Street")))

	profile := c.FindOwned("Profile")
	require.NotNil(t, profile)
	assert.Equal(t, model.StorageJSON, profile.Storage)
	assert.Equal(t, "ProfileJson", profile.Column)
	assert.False(t, profile.Required)

	tags := c.FindOwned("Tags")
	require.NotNil(t, tags)
	assert.True(t, tags.Collection)
	assert.Equal(t, "Tags", tags.Column)
	assert.Equal(t, "label", tags.Type.Property("Label").Column)

	rank := m.Enum("Rank")
	require.NotNil(t, rank)
	general, ok := rank.ByName("General")
	require.True(t, ok)
	assert.Equal(t, int64(6), general.Value)
}

func TestLoad_Relationships(t *testing.T) {
	m, err := schema.Load("shop.relq", shopSchema)
	require.NoError(t, err)
	c, _ := m.Entity("Customer")
	o, _ := m.Entity("Order")

	orders := c.FindNavigation("Orders")
	require.NotNil(t, orders)
	assert.True(t, orders.Collection)
	assert.False(t, orders.Dependent)
	require.NotNil(t, orders.Inverse)
	assert.Equal(t, "Customer", orders.Inverse.Name)
	assert.Equal(t, []string{"CustomerId"}, names(orders.ForeignKey))

	customer := o.FindNavigation("Customer")
	require.NotNil(t, customer)
	assert.True(t, customer.Dependent)
	assert.False(t, customer.Required)

	assert.True(t, o.IsTemporal())
	assert.Equal(t, "ValidFrom", o.PeriodStart().Column)
	assert.Equal(t, "OrdersHistory", o.Root().Temporal.HistoryTable)
}

func TestLoad_Hierarchy(t *testing.T) {
	m, err := schema.Load("shop.relq", shopSchema)
	require.NoError(t, err)
	animal, _ := m.Entity("Animal")
	bird, _ := m.Entity("Bird")
	kiwi, _ := m.Entity("Kiwi")

	assert.Equal(t, "Kind", animal.Discriminator().Column)
	assert.Equal(t, []string{"Bird", "kiwi"}, animal.ConcreteDiscriminatorValues())
	assert.Equal(t, []string{"kiwi"}, kiwi.ConcreteDiscriminatorValues())
	assert.Same(t, kiwi, animal.ByDiscriminator("kiwi"))
	assert.Equal(t, "Animal", bird.Table)

	cols := names(bird.ColumnProperties())
	assert.Equal(t, []string{"Id", "Kind", "Name", "CanFly", "FoundOn"}, cols)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown type", `model A { Id Int @id  X Widget }`, "unknown type Widget"},
		{"unknown base", `model A extends B { Id Int @id }`, "extends unknown model B"},
		{"unknown block attribute", `model A { Id Int @id  @@bogus }`, "unknown block attribute @@bogus"},
		{"owned collection outside json", `type T { X Int } model A { Id Int @id  Items T[] }`, "must be stored as @json"},
		{"syntax", `model { }`, "unexpected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Load("bad.relq", tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func names(props []*model.Property) []string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = p.Name
	}
	return out
}
